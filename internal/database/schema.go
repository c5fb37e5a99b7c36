package database

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// schema is applied in order on startup. Every statement is idempotent.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id          VARCHAR(64)  NOT NULL PRIMARY KEY,
		name        VARCHAR(255) NOT NULL DEFAULT '',
		email       VARCHAR(255) NOT NULL DEFAULT '',
		image_url   VARCHAR(1024) NOT NULL DEFAULT '',
		created_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS movies (
		id                VARCHAR(32)  NOT NULL PRIMARY KEY,
		title             VARCHAR(255) NOT NULL,
		overview          TEXT NOT NULL,
		poster_path       VARCHAR(255) NOT NULL DEFAULT '',
		backdrop_path     VARCHAR(255) NOT NULL DEFAULT '',
		release_date      VARCHAR(16)  NOT NULL DEFAULT '',
		original_language VARCHAR(16)  NOT NULL DEFAULT '',
		tagline           VARCHAR(512) NOT NULL DEFAULT '',
		genres            JSON NOT NULL,
		casts             JSON NOT NULL,
		vote_average      DOUBLE NOT NULL DEFAULT 0,
		runtime           INT NOT NULL DEFAULT 0,
		created_at        DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS shows (
		id          CHAR(36)    NOT NULL PRIMARY KEY,
		movie_id    VARCHAR(32) NOT NULL,
		starts_at   DATETIME    NOT NULL,
		price_cents BIGINT      NOT NULL,
		created_at  DATETIME    NOT NULL DEFAULT CURRENT_TIMESTAMP,
		UNIQUE KEY uq_shows_movie_start (movie_id, starts_at),
		KEY idx_shows_starts_at (starts_at),
		CONSTRAINT fk_shows_movie FOREIGN KEY (movie_id) REFERENCES movies(id)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS bookings (
		id                 CHAR(36)    NOT NULL PRIMARY KEY,
		user_id            VARCHAR(64) NOT NULL,
		show_id            CHAR(36)    NOT NULL,
		seats              JSON        NOT NULL,
		amount_cents       BIGINT      NOT NULL,
		is_paid            BOOLEAN     NOT NULL DEFAULT FALSE,
		payment_link       VARCHAR(1024) NULL,
		payment_session_id VARCHAR(255)  NULL,
		payment_expires_at DATETIME      NULL,
		created_at         DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at         DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
		KEY idx_bookings_user (user_id),
		KEY idx_bookings_show (show_id),
		KEY idx_bookings_unpaid (is_paid, created_at),
		CONSTRAINT fk_bookings_show FOREIGN KEY (show_id) REFERENCES shows(id)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS show_seats (
		show_id    CHAR(36)    NOT NULL,
		seat_label VARCHAR(8)  NOT NULL,
		booking_id CHAR(36)    NOT NULL,
		user_id    VARCHAR(64) NOT NULL,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (show_id, seat_label),
		KEY idx_show_seats_booking (booking_id),
		CONSTRAINT fk_show_seats_show FOREIGN KEY (show_id) REFERENCES shows(id),
		CONSTRAINT fk_show_seats_booking FOREIGN KEY (booking_id) REFERENCES bookings(id) ON DELETE CASCADE
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
}

// InitializeSchema creates the tables used by the service if they are missing.
func InitializeSchema(ctx context.Context, db *sqlx.DB) error {
	for i, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("schema statement %d: %w", i, err)
		}
	}
	return nil
}
