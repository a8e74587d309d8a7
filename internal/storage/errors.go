package storage

import (
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"paperchat/internal/util"
)

// classify marks a Postgres error with its taxonomy sentinel.
func classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return util.Mark(err, util.ErrNotFound)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch {
		case pgErr.Code == "22021", pgErr.Code == "22P02", pgErr.Code == "22000", pgErr.Code == "22001":
			return util.Mark(err, util.ErrInvalidInput)
		case pgErr.Code == "40001", pgErr.Code == "40P01", pgErr.Code == "55P03":
			return util.Mark(err, util.ErrUnavailable)
		case strings.HasPrefix(pgErr.Code, "08"), strings.HasPrefix(pgErr.Code, "57P"), strings.HasPrefix(pgErr.Code, "53"):
			return util.Mark(err, util.ErrUnavailable)
		}
		return err
	}
	var connErr *pgconn.ConnectError
	if errors.As(err, &connErr) || pgconn.Timeout(err) {
		return util.Mark(err, util.ErrUnavailable)
	}
	return err
}
