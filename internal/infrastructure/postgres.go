package infrastructure

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

type PostgresClient struct {
	Pool *pgxpool.Pool
}

func NewPostgresClient(connString string) (*PostgresClient, error) {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("unable to parse connection string: %w", err)
	}

	// Pool configuration
	config.MaxConns = 10
	config.MinConns = 2
	config.MaxConnLifetime = time.Hour
	config.MaxConnIdleTime = 30 * time.Minute

	pool, err := pgxpool.NewWithConfig(context.Background(), config)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}

	if err := pool.Ping(context.Background()); err != nil {
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}

	client := &PostgresClient{Pool: pool}

	if err := client.Migrate(); err != nil {
		return nil, fmt.Errorf("migration failed: %w", err)
	}

	return client, nil
}

func (p *PostgresClient) Migrate() error {
	ctx := context.Background()

	statements := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id SERIAL PRIMARY KEY,
			username VARCHAR(50) UNIQUE NOT NULL,
			password_hash VARCHAR(255) NOT NULL,
			role VARCHAR(20) DEFAULT 'user',
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		);`,

		`CREATE TABLE IF NOT EXISTS agents (
			id SERIAL PRIMARY KEY,
			owner_user_id INT REFERENCES users(id),
			name VARCHAR(100) NOT NULL,
			tone VARCHAR(50) DEFAULT 'friendly',
			language VARCHAR(10) DEFAULT 'en',
			system_prompt TEXT DEFAULT '',
			capabilities JSONB DEFAULT '[]',
			business_name VARCHAR(255) DEFAULT '',
			business_info TEXT DEFAULT '',
			trigger_url TEXT DEFAULT '',
			open_hour INT DEFAULT 9,
			close_hour INT DEFAULT 17,
			slot_minutes INT DEFAULT 60,
			closed_day INT DEFAULT 0,
			status VARCHAR(20) DEFAULT 'active',
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		);`,

		// One active binding per platform identifier.
		`CREATE TABLE IF NOT EXISTS channel_bindings (
			id SERIAL PRIMARY KEY,
			agent_id INT NOT NULL REFERENCES agents(id),
			phone_number_id VARCHAR(64) UNIQUE NOT NULL,
			phone_number VARCHAR(32) NOT NULL,
			access_token TEXT NOT NULL,
			verify_token VARCHAR(128) DEFAULT '',
			app_secret VARCHAR(128) DEFAULT '',
			status VARCHAR(20) DEFAULT 'active',
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		);`,

		`CREATE TABLE IF NOT EXISTS conversations (
			id SERIAL PRIMARY KEY,
			agent_id INT NOT NULL REFERENCES agents(id),
			customer_phone VARCHAR(32) NOT NULL,
			customer_name VARCHAR(100) DEFAULT '',
			state VARCHAR(20) DEFAULT 'idle',
			current_flow VARCHAR(20) DEFAULT '',
			flow_step INT DEFAULT 0,
			collected JSONB DEFAULT '{}',
			context JSONB DEFAULT '{}',
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			UNIQUE (agent_id, customer_phone)
		);`,

		`CREATE TABLE IF NOT EXISTS messages (
			id SERIAL PRIMARY KEY,
			conversation_id INT NOT NULL REFERENCES conversations(id),
			direction VARCHAR(3) NOT NULL,
			kind VARCHAR(20) DEFAULT 'text',
			content TEXT DEFAULT '',
			media_id VARCHAR(128) DEFAULT '',
			intent VARCHAR(40) DEFAULT '',
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		);`,

		`CREATE TABLE IF NOT EXISTS appointments (
			id SERIAL PRIMARY KEY,
			agent_id INT NOT NULL REFERENCES agents(id),
			conversation_id INT REFERENCES conversations(id),
			customer_name VARCHAR(100) NOT NULL,
			customer_phone VARCHAR(32) NOT NULL,
			service VARCHAR(100) DEFAULT '',
			date DATE NOT NULL,
			time VARCHAR(5) NOT NULL,
			status VARCHAR(20) DEFAULT 'confirmed',
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		);`,

		// The slot invariant: at most one non-cancelled appointment per
		// (agent, date, time). Racing writers are resolved here, not in
		// application logic.
		`CREATE UNIQUE INDEX IF NOT EXISTS uq_appointments_slot
			ON appointments (agent_id, date, time)
			WHERE status <> 'cancelled';`,

		`CREATE TABLE IF NOT EXISTS leads (
			id SERIAL PRIMARY KEY,
			agent_id INT NOT NULL REFERENCES agents(id),
			name VARCHAR(100) DEFAULT '',
			phone VARCHAR(32) NOT NULL,
			email VARCHAR(255) DEFAULT '',
			notes TEXT DEFAULT '',
			fields JSONB DEFAULT '{}',
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			UNIQUE (agent_id, phone)
		);`,

		`CREATE TABLE IF NOT EXISTS handoff_tickets (
			id SERIAL PRIMARY KEY,
			agent_id INT NOT NULL REFERENCES agents(id),
			conversation_id INT NOT NULL REFERENCES conversations(id),
			reason TEXT DEFAULT '',
			status VARCHAR(20) DEFAULT 'pending',
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		);`,

		// One pending ticket per conversation.
		`CREATE UNIQUE INDEX IF NOT EXISTS uq_handoff_pending
			ON handoff_tickets (conversation_id)
			WHERE status = 'pending';`,

		`CREATE TABLE IF NOT EXISTS knowledge_entries (
			id SERIAL PRIMARY KEY,
			agent_id INT NOT NULL REFERENCES agents(id),
			title VARCHAR(255) DEFAULT '',
			section VARCHAR(255) DEFAULT '',
			content_type VARCHAR(50) DEFAULT 'text',
			content TEXT NOT NULL,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		);`,
	}

	for _, ddl := range statements {
		if _, err := p.Pool.Exec(ctx, ddl); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}

	return nil
}

func (p *PostgresClient) Close() {
	p.Pool.Close()
}
