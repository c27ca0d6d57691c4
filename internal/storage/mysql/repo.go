package mysql

import (
	"context"
	"database/sql"
	"errors"

	"realty_site/internal/domain"
)

func valStr(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func valJSON(b []byte) any {
	if len(b) == 0 {
		return "{}"
	}
	return string(b)
}

// Repo is the lead audit log.
type Repo struct{ db *sql.DB }

func New(db *sql.DB) *Repo { return &Repo{db: db} }

func (r *Repo) SaveLead(ctx context.Context, l domain.Lead) error {
	errMsg := l.Error
	if len(errMsg) > 500 {
		errMsg = errMsg[:500]
	}
	_, err := r.db.ExecContext(ctx, upsertLeadSQL,
		l.ID,
		string(l.Kind),
		valStr(l.Name),
		l.Email,
		valStr(l.Phone),
		valJSON(l.Payload),
		l.Delivered,
		valStr(errMsg),
	)
	return err
}

func (r *Repo) GetLead(ctx context.Context, id string) (domain.Lead, error) {
	l, err := scanLead(r.db.QueryRowContext(ctx, getLeadSQL, id))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Lead{}, domain.ErrNotFound
	}
	return l, err
}

func (r *Repo) RecentLeads(ctx context.Context, kind domain.LeadKind, limit int) ([]domain.Lead, error) {
	rows, err := r.db.QueryContext(ctx, recentLeadsSQL, string(kind), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Lead
	for rows.Next() {
		l, err := scanLead(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

type scanner interface{ Scan(dest ...any) error }

func scanLead(s scanner) (domain.Lead, error) {
	var (
		l                 domain.Lead
		kind              string
		name, phone, lerr sql.NullString
		payload           []byte
		createdAt         sql.NullTime
	)
	if err := s.Scan(&l.ID, &kind, &name, &l.Email, &phone, &payload, &l.Delivered, &lerr, &createdAt); err != nil {
		return domain.Lead{}, err
	}
	l.Kind = domain.LeadKind(kind)
	l.Name = name.String
	l.Phone = phone.String
	l.Error = lerr.String
	l.Payload = append([]byte(nil), payload...)
	if createdAt.Valid {
		l.CreatedAt = createdAt.Time
	}
	return l, nil
}

// Noop discards leads when no database is configured.
type Noop struct{}

func (Noop) SaveLead(context.Context, domain.Lead) error { return nil }
func (Noop) GetLead(context.Context, string) (domain.Lead, error) {
	return domain.Lead{}, domain.ErrNotFound
}
