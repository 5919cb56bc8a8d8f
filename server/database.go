package server

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lib/pq"

	"wifi-survey/core"
)

// SurveyPoint : un point de mesure terminé, tel que stocké en base.
type SurveyPoint struct {
	ID         int64               `json:"id"`
	CreatedAt  time.Time           `json:"created_at"`
	Settings   core.Settings       `json:"settings"`
	WifiData   *core.WifiReading   `json:"wifiData"`
	IperfData  *core.ThroughputSet `json:"iperfData"`
	SSID       string              `json:"ssid"`
	BSSID      string              `json:"bssid"`
	Percentage int                 `json:"signalStrength"`
}

// Store enregistre les points dans Postgres ; c'est un agent.ResultSink.
type Store struct {
	db    *sql.DB
	table string
}

const defaultTable = "survey_points"

func OpenStore(dsn string) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("ouverture base : %w", err)
	}
	return NewStore(db, defaultTable), nil
}

func NewStore(db *sql.DB, table string) *Store {
	if table == "" {
		table = defaultTable
	}
	return &Store{db: db, table: pq.QuoteIdentifier(table)}
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) EnsureSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS `+s.table+` (
			id          BIGSERIAL PRIMARY KEY,
			created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
			ssid        TEXT NOT NULL,
			bssid       TEXT NOT NULL,
			signal_pct  INTEGER NOT NULL,
			settings    JSONB NOT NULL,
			wifi_data   JSONB NOT NULL,
			iperf_data  JSONB
		)`)
	if err != nil {
		return fmt.Errorf("création de la table %s : %w", s.table, err)
	}
	return nil
}

// SaveSurveyResult insère un point ; les résultats non terminés sont ignorés.
func (s *Store) SaveSurveyResult(ctx context.Context, settings core.Settings, result core.SurveyResult) error {
	if result.State != core.StateDone || result.Results == nil || result.Results.WifiData == nil {
		return nil
	}
	row, err := newPointRow(settings, result.Results)
	if err != nil {
		return err
	}

	var id int64
	err = s.db.QueryRowContext(ctx, `
		INSERT INTO `+s.table+` (ssid, bssid, signal_pct, settings, wifi_data, iperf_data)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`,
		row.ssid, row.bssid, row.percentage, string(row.settings), string(row.wifi), nullableJSON(row.iperf),
	).Scan(&id)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok {
			return fmt.Errorf("insertion du point (%s) : %w", pqErr.Code.Name(), err)
		}
		return fmt.Errorf("insertion du point : %w", err)
	}
	core.Log.Infof("database", "✅ point %d enregistré (%s %d%%)", id, row.ssid, row.percentage)
	return nil
}

// ListSurveyPoints renvoie les points les plus récents en premier.
func (s *Store) ListSurveyPoints(ctx context.Context, limit int) ([]SurveyPoint, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, created_at, settings, wifi_data, iperf_data
		FROM `+s.table+`
		ORDER BY id DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("lecture des points : %w", err)
	}
	defer rows.Close()

	var points []SurveyPoint
	for rows.Next() {
		var (
			p                     SurveyPoint
			settings, wifi, iperf []byte
		)
		if err := rows.Scan(&p.ID, &p.CreatedAt, &settings, &wifi, &iperf); err != nil {
			return nil, fmt.Errorf("scan point : %w", err)
		}
		if err := decodePoint(&p, settings, wifi, iperf); err != nil {
			core.Log.Warnf("database", "point %d illisible : %v", p.ID, err)
			continue
		}
		points = append(points, p)
	}
	return points, rows.Err()
}

type pointRow struct {
	ssid, bssid string
	percentage  int
	settings    []byte
	wifi        []byte
	iperf       []byte
}

func newPointRow(settings core.Settings, results *core.SurveyResults) (pointRow, error) {
	row := pointRow{
		ssid:       results.WifiData.SSID,
		bssid:      results.WifiData.BSSID,
		percentage: results.WifiData.SignalStrength,
	}
	var err error
	if row.settings, err = json.Marshal(settings); err != nil {
		return pointRow{}, fmt.Errorf("encodage settings : %w", err)
	}
	if row.wifi, err = json.Marshal(results.WifiData); err != nil {
		return pointRow{}, fmt.Errorf("encodage wifiData : %w", err)
	}
	// iperf_data reste NULL quand aucun test de débit n'a réussi
	if results.IperfData != nil {
		if row.iperf, err = json.Marshal(results.IperfData); err != nil {
			return pointRow{}, fmt.Errorf("encodage iperfData : %w", err)
		}
	}
	return row, nil
}

// Le JSON part en texte : lib/pq encoderait un []byte comme bytea.
func nullableJSON(b []byte) any {
	if b == nil {
		return nil
	}
	return string(b)
}

func decodePoint(p *SurveyPoint, settings, wifi, iperf []byte) error {
	if err := json.Unmarshal(settings, &p.Settings); err != nil {
		return fmt.Errorf("settings : %w", err)
	}
	if err := json.Unmarshal(wifi, &p.WifiData); err != nil {
		return fmt.Errorf("wifi_data : %w", err)
	}
	if len(iperf) > 0 {
		if err := json.Unmarshal(iperf, &p.IperfData); err != nil {
			return fmt.Errorf("iperf_data : %w", err)
		}
	}
	if p.WifiData != nil {
		p.SSID = p.WifiData.SSID
		p.BSSID = p.WifiData.BSSID
		p.Percentage = p.WifiData.SignalStrength
	}
	return nil
}
