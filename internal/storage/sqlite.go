package storage

import (
	"database/sql"
	"encoding/json"
	// Register sqlite3 driver
	_ "github.com/mattn/go-sqlite3"
)

type DB interface {
	Exec(query string, args ...any) (sql.Result, error)
	Query(query string, args ...any) (*sql.Rows, error)
	Close() error
}

type Store struct{ db DB }

func OpenSQLite(dsn string) (DB, error) {
	return sql.Open("sqlite3", dsn)
}

func InitSchema(db DB) error {
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS runs(
		id TEXT PRIMARY KEY, ts INTEGER, tickers TEXT, weights TEXT,
		return_mode TEXT, annual_return REAL, annual_vol REAL,
		sharpe REAL, sharpe_defined INTEGER, max_drawdown REAL, note TEXT
	)`); err != nil {
		return err
	}
	_, err := db.Exec(`CREATE TABLE IF NOT EXISTS artifacts(
		run_id TEXT, kind TEXT, file TEXT, ts INTEGER
	)`)
	return err
}

func NewStore(db DB) *Store { return &Store{db: db} }

// RunRecord is the persisted summary of one report generation.
type RunRecord struct {
	ID            string             `json:"id"`
	Timestamp     int64              `json:"ts"`
	Tickers       []string           `json:"tickers"`
	Weights       map[string]float64 `json:"weights"`
	ReturnMode    string             `json:"return_mode"`
	AnnualReturn  float64            `json:"annual_return"`
	AnnualVol     float64            `json:"annual_vol"`
	Sharpe        float64            `json:"sharpe"`
	SharpeDefined bool               `json:"sharpe_defined"`
	MaxDrawdown   float64            `json:"max_drawdown"`
	Note          string             `json:"note,omitempty"`
}

func (s *Store) SaveRun(r RunRecord) error {
	tickers, err := json.Marshal(r.Tickers)
	if err != nil {
		return err
	}
	weights, err := json.Marshal(r.Weights)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(`INSERT INTO runs(id,ts,tickers,weights,return_mode,annual_return,annual_vol,sharpe,sharpe_defined,max_drawdown,note)
		VALUES(?,?,?,?,?,?,?,?,?,?,?)`,
		r.ID, r.Timestamp, string(tickers), string(weights), r.ReturnMode,
		r.AnnualReturn, r.AnnualVol, r.Sharpe, boolToInt(r.SharpeDefined), r.MaxDrawdown, r.Note)
	return err
}

func (s *Store) SaveArtifact(runID, kind, file string, ts int64) error {
	_, err := s.db.Exec(`INSERT INTO artifacts(run_id,kind,file,ts) VALUES(?,?,?,?)`,
		runID, kind, file, ts)
	return err
}

func (s *Store) RecentRuns(limit int) ([]RunRecord, error) {
	rows, err := s.db.Query(`SELECT id,ts,tickers,weights,return_mode,annual_return,annual_vol,sharpe,sharpe_defined,max_drawdown,note
		FROM runs ORDER BY ts DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []RunRecord
	for rows.Next() {
		var r RunRecord
		var tickers, weights string
		var defined int
		if err := rows.Scan(&r.ID, &r.Timestamp, &tickers, &weights, &r.ReturnMode,
			&r.AnnualReturn, &r.AnnualVol, &r.Sharpe, &defined, &r.MaxDrawdown, &r.Note); err != nil {
			return nil, err
		}
		r.SharpeDefined = defined != 0
		if err := json.Unmarshal([]byte(tickers), &r.Tickers); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(weights), &r.Weights); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// ArtifactsForRun lists the files a run published, oldest first.
func (s *Store) ArtifactsForRun(runID string) ([][2]string, error) {
	rows, err := s.db.Query(`SELECT kind,file FROM artifacts WHERE run_id=? ORDER BY ts ASC`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out [][2]string
	for rows.Next() {
		var kind, file string
		if err := rows.Scan(&kind, &file); err != nil {
			return nil, err
		}
		out = append(out, [2]string{kind, file})
	}
	return out, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
