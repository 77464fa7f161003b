package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/iliyamo/site-listing-marketplace/internal/model"
)

const listingColumns = `id, user_id, title, url, description, price, categories, tags, countries,
	domain_authority, domain_rating, spam_score, organic_traffic, referring_domains,
	status, conflict_group, is_original, available, approval_reason, rejection_reason,
	created_at, updated_at, approved_at, rejected_at`

// ListingTx groups the listing writes that must commit or roll back
// together.  Reads made through a ListingTx lock the returned rows until
// the transaction ends.
type ListingTx interface {
	FindActiveByURL(ctx context.Context, url string) (*model.Listing, error)
	FindActiveByOwner(ctx context.Context, url, userID string) (*model.Listing, error)
	GetByID(ctx context.Context, id string) (*model.Listing, error)
	Create(ctx context.Context, l *model.Listing) error
	AssignConflict(ctx context.Context, id, group string, original bool, at time.Time) error
	ConflictMembers(ctx context.Context, group string) ([]model.Listing, error)
	Approve(ctx context.Context, id, reason string, at time.Time) error
	Reject(ctx context.Context, ids []string, reason string, at time.Time) error
}

// listingQueries runs listing statements against either the pool or an
// open transaction.  When forUpdate is set, single-row and group reads take
// row locks.
type listingQueries struct {
	q         sqlx.ExtContext
	forUpdate bool
}

func (lq listingQueries) lockClause() string {
	if lq.forUpdate {
		return " FOR UPDATE"
	}
	return ""
}

// FindActiveByURL returns the pending or approved listing for url, or
// ErrNotFound.  Inside a transaction the index range is locked so a
// concurrent submission of the same URL waits for this one to finish.
func (lq listingQueries) FindActiveByURL(ctx context.Context, url string) (*model.Listing, error) {
	var l model.Listing
	q := `SELECT ` + listingColumns + ` FROM listings
		WHERE url = ? AND status IN ('pending', 'approved')
		ORDER BY created_at ASC LIMIT 1` + lq.lockClause()
	if err := sqlx.GetContext(ctx, lq.q, &l, q, url); err != nil {
		return nil, translate(err)
	}
	return &l, nil
}

// FindActiveByOwner returns userID's pending or approved listing for url,
// or ErrNotFound.
func (lq listingQueries) FindActiveByOwner(ctx context.Context, url, userID string) (*model.Listing, error) {
	var l model.Listing
	q := `SELECT ` + listingColumns + ` FROM listings
		WHERE url = ? AND user_id = ? AND status IN ('pending', 'approved')
		ORDER BY created_at ASC LIMIT 1` + lq.lockClause()
	if err := sqlx.GetContext(ctx, lq.q, &l, q, url, userID); err != nil {
		return nil, translate(err)
	}
	return &l, nil
}

// GetByID fetches one listing.
func (lq listingQueries) GetByID(ctx context.Context, id string) (*model.Listing, error) {
	var l model.Listing
	q := `SELECT ` + listingColumns + ` FROM listings WHERE id = ?` + lq.lockClause()
	if err := sqlx.GetContext(ctx, lq.q, &l, q, id); err != nil {
		return nil, translate(err)
	}
	return &l, nil
}

// Create inserts a new listing.  The caller assigns ID and timestamps.
func (lq listingQueries) Create(ctx context.Context, l *model.Listing) error {
	_, err := sqlx.NamedExecContext(ctx, lq.q, `
		INSERT INTO listings
			(id, user_id, title, url, description, price, categories, tags, countries,
			 domain_authority, domain_rating, spam_score, organic_traffic, referring_domains,
			 status, conflict_group, is_original, available, created_at, updated_at)
		VALUES
			(:id, :user_id, :title, :url, :description, :price, :categories, :tags, :countries,
			 :domain_authority, :domain_rating, :spam_score, :organic_traffic, :referring_domains,
			 :status, :conflict_group, :is_original, :available, :created_at, :updated_at)`, l)
	return translate(err)
}

// AssignConflict moves a listing into a conflict group.
func (lq listingQueries) AssignConflict(ctx context.Context, id, group string, original bool, at time.Time) error {
	res, err := lq.q.ExecContext(ctx, `
		UPDATE listings
		SET status = 'priceConflict', conflict_group = ?, is_original = ?, available = FALSE, updated_at = ?
		WHERE id = ?`, group, original, at, id)
	if err != nil {
		return translate(err)
	}
	return expectRows(res.RowsAffected())
}

// ConflictMembers returns the listings of a group that are still awaiting
// resolution, oldest first.
func (lq listingQueries) ConflictMembers(ctx context.Context, group string) ([]model.Listing, error) {
	var list []model.Listing
	q := `SELECT ` + listingColumns + ` FROM listings
		WHERE conflict_group = ? AND status = 'priceConflict'
		ORDER BY created_at ASC` + lq.lockClause()
	if err := sqlx.SelectContext(ctx, lq.q, &list, q, group); err != nil {
		return nil, translate(err)
	}
	return list, nil
}

// Approve marks a listing approved and purchasable.
func (lq listingQueries) Approve(ctx context.Context, id, reason string, at time.Time) error {
	res, err := lq.q.ExecContext(ctx, `
		UPDATE listings
		SET status = 'approved', available = TRUE, approval_reason = ?, approved_at = ?, updated_at = ?
		WHERE id = ?`, nullable(reason), at, at, id)
	if err != nil {
		return translate(err)
	}
	return expectRows(res.RowsAffected())
}

// Reject marks every listing in ids rejected.
func (lq listingQueries) Reject(ctx context.Context, ids []string, reason string, at time.Time) error {
	if len(ids) == 0 {
		return nil
	}
	q, args, err := sqlx.In(`
		UPDATE listings
		SET status = 'rejected', available = FALSE, rejection_reason = ?, rejected_at = ?, updated_at = ?
		WHERE id IN (?)`, nullable(reason), at, at, ids)
	if err != nil {
		return fmt.Errorf("can't build reject query: %w", err)
	}
	res, err := lq.q.ExecContext(ctx, lq.q.Rebind(q), args...)
	if err != nil {
		return translate(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if int(n) != len(ids) {
		return fmt.Errorf("rejected %d of %d listings: %w", n, len(ids), ErrNotFound)
	}
	return nil
}

// ListingRepo persists listings in MySQL.
type ListingRepo struct {
	db *sqlx.DB
	listingQueries
}

// NewListingRepo returns a new ListingRepo bound to the given database.
func NewListingRepo(db *sqlx.DB) *ListingRepo {
	return &ListingRepo{db: db, listingQueries: listingQueries{q: db}}
}

// InTx runs fn inside a transaction.  The transaction commits when fn
// returns nil and rolls back otherwise.
func (r *ListingRepo) InTx(ctx context.Context, fn func(tx ListingTx) error) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("can't begin transaction: %w", err)
	}

	if err = fn(listingQueries{q: tx, forUpdate: true}); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("can't rollback transaction: %w (rollback reason: %w)", rbErr, err)
		}
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("can't commit transaction: %w", err)
	}
	return nil
}

// Browse returns approved, available listings matching f, newest first.
// f is expected to be normalised already.
func (r *ListingRepo) Browse(ctx context.Context, f model.ListingFilter) ([]model.Listing, error) {
	conds := []string{"status = 'approved'", "available = TRUE"}
	args := []interface{}{}

	if f.Category != "" {
		conds = append(conds, "JSON_CONTAINS(LOWER(categories), JSON_QUOTE(LOWER(?)))")
		args = append(args, f.Category)
	}
	if f.Country != "" {
		conds = append(conds, "JSON_CONTAINS(LOWER(countries), JSON_QUOTE(LOWER(?)))")
		args = append(args, f.Country)
	}
	if f.Query != "" {
		conds = append(conds, "title LIKE ?")
		args = append(args, "%"+f.Query+"%")
	}
	if f.MinPrice != nil {
		conds = append(conds, "price >= ?")
		args = append(args, *f.MinPrice)
	}
	if f.MaxPrice != nil {
		conds = append(conds, "price <= ?")
		args = append(args, *f.MaxPrice)
	}
	if f.MinDA != nil {
		conds = append(conds, "domain_authority >= ?")
		args = append(args, *f.MinDA)
	}
	if f.MaxSpam != nil {
		conds = append(conds, "spam_score <= ?")
		args = append(args, *f.MaxSpam)
	}

	q := `SELECT ` + listingColumns + ` FROM listings WHERE ` + strings.Join(conds, " AND ") +
		` ORDER BY created_at DESC LIMIT ? OFFSET ?`
	args = append(args, f.Limit, f.Offset)

	list := []model.Listing{}
	if err := r.db.SelectContext(ctx, &list, q, args...); err != nil {
		return nil, translate(err)
	}
	return list, nil
}

// ListByOwner returns every listing submitted by userID, newest first.
func (r *ListingRepo) ListByOwner(ctx context.Context, userID string) ([]model.Listing, error) {
	list := []model.Listing{}
	err := r.db.SelectContext(ctx, &list,
		`SELECT `+listingColumns+` FROM listings WHERE user_id = ? ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, translate(err)
	}
	return list, nil
}

// ListByStatus returns listings in the given status, oldest first so the
// moderation queue is worked in submission order.
func (r *ListingRepo) ListByStatus(ctx context.Context, status model.Status) ([]model.Listing, error) {
	list := []model.Listing{}
	err := r.db.SelectContext(ctx, &list,
		`SELECT `+listingColumns+` FROM listings WHERE status = ? ORDER BY created_at ASC`, status)
	if err != nil {
		return nil, translate(err)
	}
	return list, nil
}

// ListConflicted returns every listing still in a price conflict.
func (r *ListingRepo) ListConflicted(ctx context.Context) ([]model.Listing, error) {
	list := []model.Listing{}
	err := r.db.SelectContext(ctx, &list,
		`SELECT `+listingColumns+` FROM listings WHERE status = 'priceConflict' ORDER BY created_at DESC`)
	if err != nil {
		return nil, translate(err)
	}
	return list, nil
}

// SetAvailability toggles whether an approved listing can be purchased.
func (r *ListingRepo) SetAvailability(ctx context.Context, id string, available bool, at time.Time) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE listings SET available = ?, updated_at = ? WHERE id = ? AND status = 'approved'`,
		available, at, id)
	if err != nil {
		return translate(err)
	}
	return expectRows(res.RowsAffected())
}

// Delete removes a listing.
func (r *ListingRepo) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM listings WHERE id = ?`, id)
	if err != nil {
		return translate(err)
	}
	return expectRows(res.RowsAffected())
}

func expectRows(n int64, err error) error {
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
