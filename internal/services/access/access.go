// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package access guards executor access to an unlocked will and its
// documents. Every call re-checks the session against the clock.
package access

import (
	"archive/zip"
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path"
	"strings"
	"time"

	"codeberg.org/willtank/willtank/internal/config"
	"codeberg.org/willtank/willtank/internal/models"
	"codeberg.org/willtank/willtank/internal/repository"
	"codeberg.org/willtank/willtank/internal/storage"
)

// TokenLength is the number of random bytes in an access token.
const TokenLength = 32

// linkTTL caps how long a single download link stays valid.
const linkTTL = 15 * time.Minute

var (
	ErrAccessDenied     = errors.New("document access denied")
	ErrAccessExpired    = errors.New("document access expired, start the verification again")
	ErrDocumentNotFound = errors.New("document not found")
)

// Gate issues and checks document access sessions.
type Gate struct {
	repo        *repository.Repository
	store       storage.Store
	ttl         time.Duration
	revokeGrace time.Duration
	now         func() time.Time
}

// Option configures a Gate.
type Option func(*Gate)

// WithClock sets the time source.
func WithClock(now func() time.Time) Option {
	return func(g *Gate) { g.now = now }
}

// NewGate creates a Gate using the session lengths from cfg.
func NewGate(repo *repository.Repository, store storage.Store, cfg *config.VerificationConfig, opts ...Option) *Gate {
	g := &Gate{
		repo:        repo,
		store:       store,
		ttl:         cfg.AccessTTL,
		revokeGrace: cfg.RevokeAfterDownload,
		now:         time.Now,
	}
	if g.ttl <= 0 {
		g.ttl = time.Hour
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// GenerateToken returns a random token and the SHA256 hash that is stored.
func GenerateToken() (string, string, error) {
	b := make([]byte, TokenLength)
	if _, err := rand.Read(b); err != nil {
		return "", "", fmt.Errorf("failed to generate random bytes: %w", err)
	}
	token := hex.EncodeToString(b)
	return token, HashToken(token), nil
}

// HashToken computes the SHA256 hash of a token.
func HashToken(token string) string {
	hash := sha256.Sum256([]byte(token))
	return hex.EncodeToString(hash[:])
}

// Grant opens an access session for an unlocked request inside tx and
// returns the plaintext token. Only its hash is stored.
func (g *Gate) Grant(ctx context.Context, tx *repository.Repository, requestID string) (string, time.Time, error) {
	token, hash, err := GenerateToken()
	if err != nil {
		return "", time.Time{}, err
	}
	now := g.now()
	s := &models.DocumentAccessSession{
		VerificationRequestID: requestID,
		TokenHash:             hash,
		GrantedAt:             now,
		ExpiresAt:             now.Add(g.ttl),
	}
	if err := tx.CreateAccessSession(ctx, s); err != nil {
		return "", time.Time{}, fmt.Errorf("create access session: %w", err)
	}
	return token, s.ExpiresAt, nil
}

// grant is an authorized access to one request.
type grant struct {
	session *models.DocumentAccessSession
	request *models.VerificationRequest
}

func (g *Gate) authorize(ctx context.Context, verificationID, token string) (*grant, error) {
	if token == "" || verificationID == "" {
		return nil, ErrAccessDenied
	}
	s, err := g.repo.GetAccessSessionByTokenHash(ctx, HashToken(token))
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrAccessDenied
	}
	if err != nil {
		return nil, err
	}
	if s.VerificationRequestID != verificationID {
		return nil, ErrAccessDenied
	}
	if !s.Active(g.now()) {
		return nil, ErrAccessExpired
	}
	req, err := g.repo.GetVerificationRequest(ctx, verificationID)
	if err != nil {
		return nil, err
	}
	if req.Status != models.StatusWillUnlocked {
		return nil, ErrAccessDenied
	}
	return &grant{session: s, request: req}, nil
}

// Listing is what an executor sees after unlocking.
type Listing struct {
	UserName  string            `json:"userName"`
	Will      *models.Will      `json:"will,omitempty"`
	Documents []models.Document `json:"documents"`
	ExpiresAt time.Time         `json:"expiresAt"`
}

// List returns the will and the documents of the deceased.
func (g *Gate) List(ctx context.Context, verificationID, token string) (*Listing, error) {
	gr, err := g.authorize(ctx, verificationID, token)
	if err != nil {
		return nil, err
	}
	user, err := g.repo.GetUserByID(ctx, gr.request.UserID)
	if err != nil {
		return nil, err
	}
	will, err := g.repo.GetWill(ctx, gr.request.UserID)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}
	docs, err := g.repo.ListDocuments(ctx, gr.request.UserID)
	if err != nil {
		return nil, err
	}
	if docs == nil {
		docs = []models.Document{}
	}
	return &Listing{
		UserName:  user.DisplayName(),
		Will:      will,
		Documents: docs,
		ExpiresAt: gr.session.ExpiresAt,
	}, nil
}

// DownloadURL returns a short-lived link to one document. The link never
// outlives the access session.
func (g *Gate) DownloadURL(ctx context.Context, verificationID, token string, documentID int64) (string, time.Time, error) {
	gr, err := g.authorize(ctx, verificationID, token)
	if err != nil {
		return "", time.Time{}, err
	}
	doc, err := g.repo.GetDocument(ctx, gr.request.UserID, documentID)
	if errors.Is(err, repository.ErrNotFound) {
		return "", time.Time{}, ErrDocumentNotFound
	}
	if err != nil {
		return "", time.Time{}, err
	}
	ttl := min(linkTTL, gr.session.ExpiresAt.Sub(g.now()))
	url, err := g.store.URL(ctx, doc.StorageKey, doc.Name, ttl)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign download link: %w", err)
	}
	return url, g.now().Add(ttl), nil
}

// ZipName is the file name offered for the bulk download.
func ZipName(userName string) string {
	name := strings.Map(func(r rune) rune {
		if r == '/' || r == '\\' || r == '"' || r < 0x20 {
			return '_'
		}
		return r
	}, userName)
	return fmt.Sprintf("%s-documents.zip", strings.TrimSpace(name))
}

// Zip writes the will and every document into one archive. Starting the
// bulk download shortens the session to the revoke grace period; without a
// grace period the request's sessions are revoked at once.
func (g *Gate) Zip(ctx context.Context, verificationID, token string, w io.Writer) error {
	gr, err := g.authorize(ctx, verificationID, token)
	if err != nil {
		return err
	}

	now := g.now()
	revokeAt := now.Add(g.revokeGrace)
	if gr.session.ExpiresAt.Before(revokeAt) {
		revokeAt = gr.session.ExpiresAt
	}
	err = g.repo.WithTx(ctx, func(tx *repository.Repository) error {
		if g.revokeGrace <= 0 {
			if _, err := tx.RevokeAccessSessions(ctx, verificationID, now); err != nil {
				return err
			}
		} else if err := tx.SetAccessSessionExpiry(ctx, gr.session.ID, revokeAt); err != nil {
			return err
		}
		return tx.CreateAuditLog(ctx, gr.request.UserID, models.AuditDocumentsDownloaded,
			"bulk download for verification "+verificationID, now)
	})
	if err != nil {
		return fmt.Errorf("revoke after download: %w", err)
	}
	slog.Info("bulk download started", "verification_id", verificationID,
		"user_id", gr.request.UserID, "access_until", revokeAt)

	will, err := g.repo.GetWill(ctx, gr.request.UserID)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return err
	}
	docs, err := g.repo.ListDocuments(ctx, gr.request.UserID)
	if err != nil {
		return err
	}

	zw := zip.NewWriter(w)
	names := make(map[string]int)

	if will != nil {
		f, err := zw.CreateHeader(&zip.FileHeader{Name: "will.txt", Method: zip.Deflate, Modified: will.UpdatedAt})
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintf(f, "%s\n\n%s\n", will.Title, will.Content); err != nil {
			return err
		}
		names["will.txt"] = 1
	}

	for _, doc := range docs {
		if err := g.addDocument(ctx, zw, names, doc); err != nil {
			return fmt.Errorf("add %s to archive: %w", doc.Name, err)
		}
	}
	return zw.Close()
}

func (g *Gate) addDocument(ctx context.Context, zw *zip.Writer, names map[string]int, doc models.Document) error {
	rc, err := g.store.Open(ctx, doc.StorageKey)
	if err != nil {
		return err
	}
	defer rc.Close()

	f, err := zw.CreateHeader(&zip.FileHeader{
		Name:     uniqueName(names, "documents/"+path.Base(strings.ReplaceAll(doc.Name, `\`, "/"))),
		Method:   zip.Deflate,
		Modified: doc.CreatedAt,
	})
	if err != nil {
		return err
	}
	_, err = io.Copy(f, rc)
	return err
}

// uniqueName appends " (n)" before the extension of repeated names.
func uniqueName(seen map[string]int, name string) string {
	n := seen[name]
	seen[name] = n + 1
	if n == 0 {
		return name
	}
	ext := path.Ext(name)
	return fmt.Sprintf("%s (%d)%s", strings.TrimSuffix(name, ext), n, ext)
}
