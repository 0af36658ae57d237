package db

import (
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"noiseshield/engine"
)

var database *sql.DB

// InitDB initializes the SQLite database
func InitDB(path string) error {
	var err error
	database, err = sql.Open("sqlite3", path)
	if err != nil {
		return err
	}

	query := `
    CREATE TABLE IF NOT EXISTS diagnoses (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        domain VARCHAR(20) NOT NULL,
        label VARCHAR(40) NOT NULL,
        probability REAL NOT NULL,
        confidence REAL NOT NULL,
        noise_score REAL NOT NULL,
        disagreement REAL NOT NULL,
        contributions TEXT,
        model_weights TEXT,
        created_at DATETIME NOT NULL
    );
    CREATE INDEX IF NOT EXISTS idx_diagnoses_domain_time ON diagnoses(domain, created_at);
    CREATE TABLE IF NOT EXISTS robustness_runs (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        domain VARCHAR(20) NOT NULL,
        seed INTEGER NOT NULL,
        sample_count INTEGER NOT NULL,
        curve TEXT NOT NULL,
        created_at DATETIME NOT NULL
    );
    CREATE TABLE IF NOT EXISTS training_log (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        domain VARCHAR(20) NOT NULL,
        model_count INTEGER NOT NULL,
        accuracy REAL NOT NULL,
        data_points INTEGER NOT NULL,
        trained_at DATETIME NOT NULL
    );
    `

	_, err = database.Exec(query)
	return err
}

// SaveDiagnosis persists one diagnosis for history and reporting.
func SaveDiagnosis(d engine.Diagnosis) error {
	if database == nil {
		return errors.New("database not initialized")
	}
	contributions, err := json.Marshal(d.Contributions)
	if err != nil {
		return err
	}
	weights, err := json.Marshal(d.ModelWeights)
	if err != nil {
		return err
	}
	_, err = database.Exec(`
        INSERT INTO diagnoses (
            domain, label, probability, confidence, noise_score,
            disagreement, contributions, model_weights, created_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		string(d.Domain), d.Label, d.Probability, d.Confidence, d.NoiseScore,
		d.Disagreement, string(contributions), string(weights), d.Timestamp)
	return err
}

// QueryDiagnoses returns the most recent diagnoses for a domain, newest
// first.
func QueryDiagnoses(domain engine.Domain, limit int) ([]engine.Diagnosis, error) {
	if database == nil {
		return nil, errors.New("database not initialized")
	}
	if limit <= 0 {
		limit = 50
	}
	rows, err := database.Query(`
        SELECT domain, label, probability, confidence, noise_score,
               disagreement, contributions, model_weights, created_at
        FROM diagnoses
        WHERE domain = ?
        ORDER BY created_at DESC
        LIMIT ?`, string(domain), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var diagnoses []engine.Diagnosis
	for rows.Next() {
		var d engine.Diagnosis
		var domainRaw, contributions, weights string
		if err := rows.Scan(&domainRaw, &d.Label, &d.Probability, &d.Confidence,
			&d.NoiseScore, &d.Disagreement, &contributions, &weights, &d.Timestamp); err != nil {
			return nil, err
		}
		d.Domain = engine.Domain(domainRaw)
		if contributions != "" {
			if err := json.Unmarshal([]byte(contributions), &d.Contributions); err != nil {
				return nil, err
			}
		}
		if weights != "" {
			if err := json.Unmarshal([]byte(weights), &d.ModelWeights); err != nil {
				return nil, err
			}
		}
		diagnoses = append(diagnoses, d)
	}
	return diagnoses, rows.Err()
}

// SaveRobustnessRun persists one evaluation run with its full curve.
func SaveRobustnessRun(domain engine.Domain, seed int64, sampleCount int, curve engine.RobustnessCurve) error {
	if database == nil {
		return errors.New("database not initialized")
	}
	payload, err := json.Marshal(curve)
	if err != nil {
		return err
	}
	_, err = database.Exec(`
        INSERT INTO robustness_runs (domain, seed, sample_count, curve, created_at)
        VALUES (?, ?, ?, ?, ?)`,
		string(domain), seed, sampleCount, string(payload), time.Now().UTC())
	return err
}

// LatestRobustnessRun returns the newest stored curve for a domain.
func LatestRobustnessRun(domain engine.Domain) (engine.RobustnessCurve, error) {
	if database == nil {
		return nil, errors.New("database not initialized")
	}
	var payload string
	err := database.QueryRow(`
        SELECT curve FROM robustness_runs
        WHERE domain = ?
        ORDER BY created_at DESC
        LIMIT 1`, string(domain)).Scan(&payload)
	if err != nil {
		return nil, err
	}
	var curve engine.RobustnessCurve
	if err := json.Unmarshal([]byte(payload), &curve); err != nil {
		return nil, err
	}
	return curve, nil
}

// SaveTrainingLog records one offline training run.
func SaveTrainingLog(domain engine.Domain, modelCount int, accuracy float64, dataPoints int) error {
	if database == nil {
		return errors.New("database not initialized")
	}
	_, err := database.Exec(`
        INSERT INTO training_log (domain, model_count, accuracy, data_points, trained_at)
        VALUES (?, ?, ?, ?, ?)`,
		string(domain), modelCount, accuracy, dataPoints, time.Now().UTC())
	return err
}

// Close closes the database handle.
func Close() error {
	if database == nil {
		return nil
	}
	err := database.Close()
	database = nil
	return err
}
