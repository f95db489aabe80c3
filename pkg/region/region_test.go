package region

import "testing"

func TestInferRegionKeyKnownRegions(t *testing.T) {
	t.Parallel()

	r := NewResolver()

	cases := []struct {
		name string
		want string
	}{
		{"КМВ", "kmv"},
		{"Кавказские Минеральные Воды", "kmv"},
		{"Регион Кавказских Минеральных Вод", "kmv"},
		{"Турция", "turkey"},
		{"Закавказье", "transcaucasia"},
		{"Алтай", "altai"},
		{"Тюмень", "tyumen"},
		{"Юго-Восточная Азия", "se_asia"},
		{"ЮВА", "se_asia"},
	}

	for _, tc := range cases {
		if got := r.InferRegionKey(tc.name); got != tc.want {
			t.Errorf("InferRegionKey(%q) = %q, want %q", tc.name, got, tc.want)
		}
	}
}

func TestInferRegionKeySubstring(t *testing.T) {
	t.Parallel()

	r := NewResolver()
	if got := r.InferRegionKey("Источники: Алтай и окрестности"); got != "altai" {
		t.Fatalf("got %q, want altai", got)
	}
}

func TestInferRegionKeyFallbackSlug(t *testing.T) {
	t.Parallel()

	r := NewResolver()
	if got := r.InferRegionKey("Камчатка"); got != "kamchatka" {
		t.Fatalf("got %q, want kamchatka", got)
	}
}

func TestInferRegionKeyDeterministic(t *testing.T) {
	t.Parallel()

	r := NewResolver()
	first := r.InferRegionKey("Минеральные воды Сибири")
	for i := 0; i < 20; i++ {
		if got := r.InferRegionKey("Минеральные воды Сибири"); got != first {
			t.Fatalf("run %d: %q != %q", i, got, first)
		}
	}
}

func TestSlugify(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in   string
		want string
	}{
		{"северный", "severny"},
		{"Горячий ключ", "goryachii_klyuch"},
		{"Щёлково", "shchelkovo"},
		{"объект", "obekt"},
		{"Hot Springs 2024", "hot_springs_2024"},
		{"  --  ", "topic"},
		{"", "topic"},
	}

	for _, tc := range cases {
		if got := Slugify(tc.in); got != tc.want {
			t.Errorf("Slugify(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestNormalizeTopicName(t *testing.T) {
	t.Parallel()

	if got := NormalizeTopicName("  Тёплый Ключ  "); got != "теплый ключ" {
		t.Fatalf("got %q", got)
	}
}
