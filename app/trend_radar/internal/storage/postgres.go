package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/lib/pq"

	"github.com/iWorld-y/trend_radar/app/trend_radar/pkg/config"
	"github.com/iWorld-y/trend_radar/app/trend_radar/pkg/model"
)

type Storage struct {
	db *sql.DB
}

// ConnString 由配置生成连接串
func ConnString(cfg config.DBConfig) string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Name)
}

func NewStorage(cfg config.DBConfig) (*Storage, error) {
	return Open(ConnString(cfg))
}

// Open 连接数据库并确保表结构存在
func Open(dsn string) (*Storage, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	s := &Storage{db: db}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return s, nil
}

func (s *Storage) Close() error {
	return s.db.Close()
}

func (s *Storage) initSchema() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS ai_trend_reports (
			id SERIAL PRIMARY KEY,
			run_id TEXT NOT NULL,
			date TEXT NOT NULL,
			summary JSONB,
			detailed_results JSONB,
			new_keywords TEXT[],
			recommendations TEXT[],
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS ai_trend_keywords (
			id SERIAL PRIMARY KEY,
			report_id INTEGER REFERENCES ai_trend_reports(id),
			term TEXT NOT NULL
		)`,
	}

	for _, query := range queries {
		if _, err := s.db.Exec(query); err != nil {
			return fmt.Errorf("failed to execute query %s: %w", query, err)
		}
	}

	return nil
}

// SaveReport 在一个事务中写入报告及其新关键词
func (s *Storage) SaveReport(ctx context.Context, runID string, report *model.Report) error {
	summary, err := json.Marshal(report.Summary)
	if err != nil {
		return fmt.Errorf("failed to encode summary: %w", err)
	}
	detailed, err := json.Marshal(report.DetailedResults)
	if err != nil {
		return fmt.Errorf("failed to encode detailed results: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var reportID int
	err = tx.QueryRowContext(ctx, `
		INSERT INTO ai_trend_reports (run_id, date, summary, detailed_results, new_keywords, recommendations)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`,
		runID, report.Date, string(summary), string(detailed),
		pq.Array(report.NewKeywords), pq.Array(report.Recommendations)).Scan(&reportID)
	if err != nil {
		return fmt.Errorf("failed to insert trend report: %w", err)
	}

	for _, term := range report.NewKeywords {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO ai_trend_keywords (report_id, term)
			VALUES ($1, $2)`,
			reportID, term)
		if err != nil {
			return fmt.Errorf("failed to insert keyword: %w", err)
		}
	}

	return tx.Commit()
}

// LatestReportDate 返回最近一次写入的报告日期
func (s *Storage) LatestReportDate(ctx context.Context) (string, error) {
	var date string
	err := s.db.QueryRowContext(ctx, `SELECT date FROM ai_trend_reports ORDER BY id DESC LIMIT 1`).Scan(&date)
	if err != nil {
		return "", err
	}
	return date, nil
}
