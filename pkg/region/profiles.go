package region

// Profile holds the anchor terms a region's backfill queries are built
// from. Anchor lists are in Russian because the discovery sites index
// Russian-language literature.
type Profile struct {
	GeoAnchors    []string
	ResortAnchors []string
	Extra         []string
}

var profiles = map[string]Profile{
	"kmv": {
		GeoAnchors:    []string{"Кавказские Минеральные Воды", "КМВ", "Ставропольский край"},
		ResortAnchors: []string{"Ессентуки", "Кисловодск", "Пятигорск", "Железноводск", "Нарзан"},
		Extra: []string{
			"Ессентуки №17",
			"Ессентуки №4",
			"нарзанная галерея",
			"радоновые воды",
			"сероводородные воды",
		},
	},
	"transcaucasia": {
		GeoAnchors:    []string{"Закавказье", "Кавказ"},
		ResortAnchors: []string{"Боржоми", "Цхалтубо", "Джермук", "Нафталан", "Саирме", "Ахтала"},
		Extra: []string{
			"минеральные воды Грузии",
			"минеральные воды Армении",
			"санаторно-курортное лечение",
		},
	},
	"altai": {
		GeoAnchors:    []string{"Алтай", "Алтайский край", "Горный Алтай"},
		ResortAnchors: []string{"Белокуриха"},
		Extra:         []string{"радоновые воды", "термальные источники", "курорт Белокуриха"},
	},
	"tyumen": {
		GeoAnchors:    []string{"Тюмень", "Тюменская область", "Западная Сибирь"},
		ResortAnchors: []string{"геотермальные воды", "термальные источники Тюмени"},
		Extra:         []string{"скважина", "температура пласта", "дебит", "геотермальное теплоснабжение"},
	},
	"turkey": {
		GeoAnchors:    []string{"Турция", "Türkiye"},
		ResortAnchors: []string{"Памуккале", "Ялова", "Афьон", "Кангал", "Денизли"},
		Extra:         []string{"термальные источники", "thermal springs", "balneotherapy"},
	},
	"se_asia": {
		GeoAnchors:    []string{"Юго-Восточная Азия", "ЮВА"},
		ResortAnchors: []string{"Вьетнам", "Индонезия", "Таиланд", "Филиппины", "Малайзия"},
		Extra:         []string{"hot springs", "thermal springs", "spa"},
	},
}

// GetProfile returns the profile for a region key. Unknown keys get a
// single-anchor profile of the key itself so query generation still works.
func GetProfile(regionKey string) Profile {
	if p, ok := profiles[regionKey]; ok {
		return p
	}
	return Profile{GeoAnchors: []string{regionKey}}
}
