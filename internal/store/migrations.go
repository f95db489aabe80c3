package store

const schema = `
CREATE TABLE IF NOT EXISTS topics (
    id                INTEGER PRIMARY KEY AUTOINCREMENT,
    chat_id           INTEGER NOT NULL,
    message_thread_id INTEGER NOT NULL,
    name              TEXT NOT NULL,
    region_key        TEXT NOT NULL DEFAULT '',
    mode              TEXT NOT NULL DEFAULT 'backfill_ru',
    enabled           BOOLEAN NOT NULL DEFAULT 1,
    created_at        DATETIME NOT NULL,
    last_post_at      DATETIME NULL,
    UNIQUE(chat_id, message_thread_id)
);

CREATE INDEX IF NOT EXISTS idx_topics_chat ON topics(chat_id);

CREATE TABLE IF NOT EXISTS content_queue (
    id           INTEGER PRIMARY KEY AUTOINCREMENT,
    topic_id     INTEGER NOT NULL REFERENCES topics(id) ON DELETE CASCADE,
    item_type    TEXT NOT NULL,
    source       TEXT NOT NULL,
    external_id  TEXT NOT NULL,
    title        TEXT NOT NULL,
    snippet      TEXT NOT NULL DEFAULT '',
    url          TEXT NOT NULL DEFAULT '',
    score        INTEGER NOT NULL,
    reasons_json TEXT NOT NULL DEFAULT '[]',
    status       TEXT NOT NULL DEFAULT 'new',
    created_at   DATETIME NOT NULL,
    posted_at    DATETIME NULL,
    UNIQUE(topic_id, external_id)
);

CREATE INDEX IF NOT EXISTS idx_queue_topic_status ON content_queue(topic_id, status);
CREATE INDEX IF NOT EXISTS idx_queue_score ON content_queue(score);

CREATE TABLE IF NOT EXISTS seen (
    external_id   TEXT PRIMARY KEY,
    first_seen_at DATETIME NOT NULL,
    source_kind   TEXT NOT NULL DEFAULT '',
    expires_at    DATETIME NULL
);

CREATE INDEX IF NOT EXISTS idx_seen_expires ON seen(expires_at);
`
