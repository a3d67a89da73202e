package storage

// All timestamps are unix milliseconds; 0 means unknown.
const Schema = `
-- Documents: local corpus plus promoted live-scrape results
CREATE TABLE IF NOT EXISTS documents (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    url TEXT UNIQUE NOT NULL,
    title TEXT NOT NULL DEFAULT '',
    content TEXT NOT NULL DEFAULT '',
    tokens TEXT NOT NULL DEFAULT '',   -- space separated stemmed sequence
    origin TEXT NOT NULL DEFAULT 'local',
    category TEXT NOT NULL DEFAULT '',
    published_at INTEGER NOT NULL DEFAULT 0,
    created_at INTEGER NOT NULL DEFAULT 0,
    click_count INTEGER NOT NULL DEFAULT 0,
    last_reported_at INTEGER NOT NULL DEFAULT 0
);

-- Terms dictionary
CREATE TABLE IF NOT EXISTS terms (
    term_id INTEGER PRIMARY KEY AUTOINCREMENT,
    term TEXT UNIQUE NOT NULL,
    document_frequency INTEGER NOT NULL DEFAULT 0
);

-- Postings list: inverted index mapping terms to documents
CREATE TABLE IF NOT EXISTS postings (
    term_id INTEGER NOT NULL,
    doc_id INTEGER NOT NULL,
    term_frequency INTEGER NOT NULL,
    PRIMARY KEY (term_id, doc_id),
    FOREIGN KEY (term_id) REFERENCES terms(term_id),
    FOREIGN KEY (doc_id) REFERENCES documents(id)
);
CREATE INDEX IF NOT EXISTS idx_postings_doc ON postings(doc_id);

-- Feedback: immutable records, single-shot per (session, url, kind).
-- NULL session ids never collide, so anonymous feedback accumulates.
CREATE TABLE IF NOT EXISTS feedback (
    id TEXT PRIMARY KEY,
    target_url TEXT NOT NULL,
    kind TEXT NOT NULL,
    impact REAL NOT NULL,
    comment TEXT NOT NULL DEFAULT '',
    session_id TEXT,
    created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_feedback_url ON feedback(target_url);
CREATE UNIQUE INDEX IF NOT EXISTS idx_feedback_once ON feedback(session_id, target_url, kind);

-- Query corpus: authoritative source for the prediction trie
CREATE TABLE IF NOT EXISTS query_corpus (
    phrase TEXT PRIMARY KEY,
    category TEXT NOT NULL DEFAULT 'general',
    frequency INTEGER NOT NULL DEFAULT 0,
    last_searched INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_query_corpus_freq ON query_corpus(frequency DESC, last_searched DESC);

CREATE TABLE IF NOT EXISTS corpus_next_words (
    context TEXT NOT NULL,
    word TEXT NOT NULL,
    count INTEGER NOT NULL DEFAULT 0,
    PRIMARY KEY (context, word)
);

-- Interaction log: append-only behavioral events
CREATE TABLE IF NOT EXISTS interaction_log (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    session_id TEXT NOT NULL,
    action TEXT NOT NULL,
    target TEXT NOT NULL DEFAULT '',
    emergency INTEGER NOT NULL DEFAULT 0,
    duration_ms INTEGER NOT NULL DEFAULT 0,
    created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_interaction_target ON interaction_log(target, action);

-- Index metadata: global corpus state
CREATE TABLE IF NOT EXISTS index_metadata (
    key TEXT PRIMARY KEY,
    value TEXT NOT NULL,
    updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

INSERT OR IGNORE INTO index_metadata (key, value) VALUES
    ('total_documents', '0'),
    ('index_version', '1');
`
