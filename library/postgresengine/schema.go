package postgresengine

// PostgresSchema creates the tables with the default names.
const PostgresSchema = `
CREATE TABLE IF NOT EXISTS books (
	id     BIGINT GENERATED BY DEFAULT AS IDENTITY PRIMARY KEY,
	title  TEXT    NOT NULL,
	author TEXT    NOT NULL,
	year   INTEGER NOT NULL CHECK (year BETWEEN 1 AND 9999)
);

CREATE TABLE IF NOT EXISTS readers (
	id    BIGINT GENERATED BY DEFAULT AS IDENTITY PRIMARY KEY,
	name  TEXT NOT NULL,
	email TEXT NOT NULL UNIQUE
);

CREATE TABLE IF NOT EXISTS reader_profiles (
	id        BIGINT GENERATED BY DEFAULT AS IDENTITY PRIMARY KEY,
	reader_id BIGINT NOT NULL UNIQUE REFERENCES readers (id) ON DELETE CASCADE,
	address   TEXT   NOT NULL DEFAULT '',
	phone     TEXT   NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS cards (
	id        BIGINT GENERATED BY DEFAULT AS IDENTITY PRIMARY KEY,
	reader_id BIGINT      NOT NULL REFERENCES readers (id),
	created   TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS histories (
	id          BIGINT GENERATED BY DEFAULT AS IDENTITY PRIMARY KEY,
	book_id     BIGINT      NOT NULL REFERENCES books (id),
	card_id     BIGINT      NOT NULL REFERENCES cards (id),
	take_date   TIMESTAMPTZ NOT NULL,
	return_date TIMESTAMPTZ NULL,
	CHECK (return_date IS NULL OR return_date >= take_date)
);

CREATE INDEX IF NOT EXISTS histories_book_id_idx ON histories (book_id);
CREATE INDEX IF NOT EXISTS histories_card_id_idx ON histories (card_id);
CREATE INDEX IF NOT EXISTS histories_take_date_idx ON histories (take_date);
CREATE UNIQUE INDEX IF NOT EXISTS histories_one_active_loan_idx ON histories (book_id) WHERE return_date IS NULL;
`

// SQLiteSchema mirrors PostgresSchema for the sqlite3 dialect. Foreign keys are only enforced
// when the connection enables them (_foreign_keys=on).
const SQLiteSchema = `
CREATE TABLE IF NOT EXISTS books (
	id     INTEGER PRIMARY KEY AUTOINCREMENT,
	title  TEXT    NOT NULL,
	author TEXT    NOT NULL,
	year   INTEGER NOT NULL CHECK (year BETWEEN 1 AND 9999)
);

CREATE TABLE IF NOT EXISTS readers (
	id    INTEGER PRIMARY KEY AUTOINCREMENT,
	name  TEXT NOT NULL,
	email TEXT NOT NULL UNIQUE
);

CREATE TABLE IF NOT EXISTS reader_profiles (
	id        INTEGER PRIMARY KEY AUTOINCREMENT,
	reader_id INTEGER NOT NULL UNIQUE REFERENCES readers (id) ON DELETE CASCADE,
	address   TEXT    NOT NULL DEFAULT '',
	phone     TEXT    NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS cards (
	id        INTEGER PRIMARY KEY AUTOINCREMENT,
	reader_id INTEGER  NOT NULL REFERENCES readers (id),
	created   DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS histories (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	book_id     INTEGER  NOT NULL REFERENCES books (id),
	card_id     INTEGER  NOT NULL REFERENCES cards (id),
	take_date   DATETIME NOT NULL,
	return_date DATETIME NULL,
	CHECK (return_date IS NULL OR return_date >= take_date)
);

CREATE UNIQUE INDEX IF NOT EXISTS histories_one_active_loan_idx ON histories (book_id) WHERE return_date IS NULL;
`
