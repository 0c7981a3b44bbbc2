package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ericfisherdev/reviewsync/internal/domain/model"
	"github.com/ericfisherdev/reviewsync/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.DraftStore = (*DraftRepo)(nil)

// DraftRepo is the SQLite implementation of the DraftStore port interface.
type DraftRepo struct {
	db  *DB
	now func() time.Time
}

// NewDraftRepo creates a new DraftRepo backed by the given DB.
func NewDraftRepo(db *DB) *DraftRepo {
	return &DraftRepo{db: db, now: time.Now}
}

// AddComment inserts a local comment and returns it with its assigned ID and
// timestamps.
func (r *DraftRepo) AddComment(ctx context.Context, comment model.DraftComment) (model.DraftComment, error) {
	const query = `
		INSERT INTO local_comments (
			owner, repo, pr_number, path, line, side, body, commit_id,
			in_reply_to_id, local_folder, published, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	now := r.now().UTC()
	if comment.Side == "" {
		comment.Side = model.SideRight
	}

	var inReplyToID any
	if comment.InReplyToID != nil {
		inReplyToID = *comment.InReplyToID
	}

	res, err := r.db.Writer.ExecContext(ctx, query,
		comment.Owner, comment.Repo, comment.PRNumber, comment.Path, comment.Line,
		string(comment.Side), comment.Body, comment.CommitID, inReplyToID,
		comment.LocalFolder, boolToInt(comment.Published), formatTime(now), formatTime(now),
	)
	if err != nil {
		return model.DraftComment{}, fmt.Errorf("insert local comment on %s/%s#%d: %w", comment.Owner, comment.Repo, comment.PRNumber, err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return model.DraftComment{}, fmt.Errorf("read local comment id: %w", err)
	}

	comment.ID = id
	comment.CreatedAt = now
	comment.UpdatedAt = now
	return comment, nil
}

// ListComments returns the pull request's local comments ordered by creation.
func (r *DraftRepo) ListComments(ctx context.Context, pr model.PRRef) ([]model.DraftComment, error) {
	const query = `
		SELECT id, owner, repo, pr_number, path, line, side, body, commit_id,
		       in_reply_to_id, local_folder, published, created_at, updated_at
		FROM local_comments
		WHERE owner = ? AND repo = ? AND pr_number = ?
		ORDER BY id
	`

	rows, err := r.db.Reader.QueryContext(ctx, query, pr.Owner, pr.Repo, pr.Number)
	if err != nil {
		return nil, fmt.Errorf("query local comments for %s: %w", pr, err)
	}
	defer rows.Close()

	comments := []model.DraftComment{}
	for rows.Next() {
		comment, err := scanDraftComment(rows)
		if err != nil {
			return nil, fmt.Errorf("scan local comment: %w", err)
		}
		comments = append(comments, *comment)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate local comments: %w", err)
	}

	return comments, nil
}

// GetComment returns the local comment with the given id, or driven.ErrNotFound.
func (r *DraftRepo) GetComment(ctx context.Context, id int64) (*model.DraftComment, error) {
	const query = `
		SELECT id, owner, repo, pr_number, path, line, side, body, commit_id,
		       in_reply_to_id, local_folder, published, created_at, updated_at
		FROM local_comments
		WHERE id = ?
	`

	comment, err := scanDraftComment(r.db.Reader.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("local comment %d: %w", id, driven.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get local comment %d: %w", id, err)
	}

	return comment, nil
}

// UpdateComment replaces the body of a local comment.
func (r *DraftRepo) UpdateComment(ctx context.Context, id int64, body string) error {
	const query = `UPDATE local_comments SET body = ?, updated_at = ? WHERE id = ?`

	res, err := r.db.Writer.ExecContext(ctx, query, body, formatTime(r.now()), id)
	if err != nil {
		return fmt.Errorf("update local comment %d: %w", id, err)
	}

	return requireAffected(res, fmt.Sprintf("local comment %d", id))
}

// DeleteComment removes a local comment.
func (r *DraftRepo) DeleteComment(ctx context.Context, id int64) error {
	const query = `DELETE FROM local_comments WHERE id = ?`

	res, err := r.db.Writer.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("delete local comment %d: %w", id, err)
	}

	return requireAffected(res, fmt.Sprintf("local comment %d", id))
}

// MarkPublished flags the given local comments published in one transaction.
// Unknown ids are ignored.
func (r *DraftRepo) MarkPublished(ctx context.Context, ids []int64, at time.Time) error {
	if len(ids) == 0 {
		return nil
	}

	tx, err := r.db.Writer.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin mark local comments published: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	const query = `UPDATE local_comments SET published = 1, updated_at = ? WHERE id = ? AND published = 0`
	for _, id := range ids {
		if _, err := tx.ExecContext(ctx, query, formatTime(at), id); err != nil {
			return fmt.Errorf("mark local comment %d published: %w", id, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit mark local comments published: %w", err)
	}

	return nil
}

// StartReview opens the local pending review for pr. A previously submitted
// review row is replaced; an existing pending review is left untouched and
// created is false.
func (r *DraftRepo) StartReview(ctx context.Context, pr model.PRRef, author, commitID string) (bool, error) {
	const query = `
		INSERT INTO local_reviews (owner, repo, pr_number, author, commit_id, state, body, created_at, submitted_at)
		VALUES (?, ?, ?, ?, ?, 'PENDING', NULL, ?, NULL)
		ON CONFLICT(owner, repo, pr_number) DO UPDATE SET
			author = excluded.author,
			commit_id = excluded.commit_id,
			state = 'PENDING',
			body = NULL,
			created_at = excluded.created_at,
			submitted_at = NULL
		WHERE local_reviews.state != 'PENDING'
	`

	res, err := r.db.Writer.ExecContext(ctx, query,
		pr.Owner, pr.Repo, pr.Number, author, commitID, formatTime(r.now()),
	)
	if err != nil {
		return false, fmt.Errorf("start local review for %s: %w", pr, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("start local review for %s: %w", pr, err)
	}

	return n > 0, nil
}

// GetReview returns the local review for pr, or (nil, nil) if none exists.
func (r *DraftRepo) GetReview(ctx context.Context, pr model.PRRef) (*model.Review, error) {
	const query = `
		SELECT author, commit_id, state, body, submitted_at
		FROM local_reviews
		WHERE owner = ? AND repo = ? AND pr_number = ?
	`

	var (
		review      model.Review
		state       string
		body        sql.NullString
		submittedAt sql.NullString
	)

	err := r.db.Reader.QueryRowContext(ctx, query, pr.Owner, pr.Repo, pr.Number).Scan(
		&review.Author, &review.CommitID, &state, &body, &submittedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get local review for %s: %w", pr, err)
	}

	review.ID = int64(pr.Number)
	review.Origin = model.OriginLocal
	review.State = model.ReviewState(state)
	review.IsMine = true

	if body.Valid {
		b := body.String
		review.Body = &b
	}

	if submittedAt.Valid {
		t, err := parseTime(submittedAt.String)
		if err != nil {
			return nil, fmt.Errorf("parse submitted_at: %w", err)
		}
		review.SubmittedAt = &t
	}

	return &review, nil
}

// SubmitReview marks the pending local review submitted and every unpublished
// comment on the pull request published, atomically.
func (r *DraftRepo) SubmitReview(ctx context.Context, pr model.PRRef, body string, at time.Time) error {
	tx, err := r.db.Writer.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin submit local review: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	const upsertReview = `
		INSERT INTO local_reviews (owner, repo, pr_number, author, commit_id, state, body, created_at, submitted_at)
		VALUES (?, ?, ?, '', '', 'SUBMITTED', ?, ?, ?)
		ON CONFLICT(owner, repo, pr_number) DO UPDATE SET
			state = 'SUBMITTED',
			body = excluded.body,
			submitted_at = excluded.submitted_at
	`
	if _, err := tx.ExecContext(ctx, upsertReview,
		pr.Owner, pr.Repo, pr.Number, body, formatTime(at), formatTime(at),
	); err != nil {
		return fmt.Errorf("mark local review submitted for %s: %w", pr, err)
	}

	const publishComments = `
		UPDATE local_comments SET published = 1, updated_at = ?
		WHERE owner = ? AND repo = ? AND pr_number = ? AND published = 0
	`
	if _, err := tx.ExecContext(ctx, publishComments, formatTime(at), pr.Owner, pr.Repo, pr.Number); err != nil {
		return fmt.Errorf("publish local comments for %s: %w", pr, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit submit local review for %s: %w", pr, err)
	}

	return nil
}

// ClearReview removes the local review row and every unpublished comment.
func (r *DraftRepo) ClearReview(ctx context.Context, pr model.PRRef) error {
	tx, err := r.db.Writer.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin clear local review: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	const deleteComments = `DELETE FROM local_comments WHERE owner = ? AND repo = ? AND pr_number = ? AND published = 0`
	if _, err := tx.ExecContext(ctx, deleteComments, pr.Owner, pr.Repo, pr.Number); err != nil {
		return fmt.Errorf("delete local comments for %s: %w", pr, err)
	}

	const deleteReview = `DELETE FROM local_reviews WHERE owner = ? AND repo = ? AND pr_number = ?`
	if _, err := tx.ExecContext(ctx, deleteReview, pr.Owner, pr.Repo, pr.Number); err != nil {
		return fmt.Errorf("delete local review for %s: %w", pr, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit clear local review for %s: %w", pr, err)
	}

	return nil
}

// ListDraftPRs returns every pull request holding unpublished comments,
// ordered by repository and number.
func (r *DraftRepo) ListDraftPRs(ctx context.Context) ([]model.PRRef, error) {
	const query = `
		SELECT DISTINCT owner, repo, pr_number
		FROM local_comments
		WHERE published = 0
		ORDER BY owner, repo, pr_number
	`

	rows, err := r.db.Reader.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query draft pull requests: %w", err)
	}
	defer rows.Close()

	var prs []model.PRRef
	for rows.Next() {
		var pr model.PRRef
		if err := rows.Scan(&pr.Owner, &pr.Repo, &pr.Number); err != nil {
			return nil, fmt.Errorf("scan draft pull request: %w", err)
		}
		prs = append(prs, pr)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate draft pull requests: %w", err)
	}

	return prs, nil
}

func scanDraftComment(s scanner) (*model.DraftComment, error) {
	var (
		comment              model.DraftComment
		side                 string
		inReplyToID          sql.NullInt64
		published            int
		createdAt, updatedAt string
	)

	err := s.Scan(
		&comment.ID, &comment.Owner, &comment.Repo, &comment.PRNumber,
		&comment.Path, &comment.Line, &side, &comment.Body, &comment.CommitID,
		&inReplyToID, &comment.LocalFolder, &published, &createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}

	comment.Side = model.Side(side)
	comment.Published = published != 0

	if inReplyToID.Valid {
		id := inReplyToID.Int64
		comment.InReplyToID = &id
	}

	comment.CreatedAt, err = parseTime(createdAt)
	if err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}

	comment.UpdatedAt, err = parseTime(updatedAt)
	if err != nil {
		return nil, fmt.Errorf("parse updated_at: %w", err)
	}

	return &comment, nil
}

func requireAffected(res sql.Result, what string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: rows affected: %w", what, err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", what, driven.ErrNotFound)
	}
	return nil
}
