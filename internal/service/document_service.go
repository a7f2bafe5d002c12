package service

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/url"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/noah-isme/safedocs-api/internal/dto"
	"github.com/noah-isme/safedocs-api/internal/models"
	appErrors "github.com/noah-isme/safedocs-api/pkg/errors"
	"github.com/noah-isme/safedocs-api/pkg/storage"
)

type documentRepository interface {
	Create(ctx context.Context, doc *models.Document) error
	GetByID(ctx context.Context, id string) (*models.Document, error)
	GetByShareToken(ctx context.Context, token string) (*models.Document, error)
	List(ctx context.Context, filter models.DocumentFilter) ([]models.Document, int, error)
	ListSharedWith(ctx context.Context, userID string, page, pageSize int) ([]models.SharedDocument, int, error)
	Update(ctx context.Context, doc *models.Document) error
	Delete(ctx context.Context, id string) error
	IncrementDownloads(ctx context.Context, id string) error
	AssignShareToken(ctx context.Context, id, token string) (string, error)
	UpsertShare(ctx context.Context, share *models.DocumentShare) error
	IsSharedWith(ctx context.Context, documentID, userID string) (bool, error)
	SetOfficial(ctx context.Context, id string, official bool) error
}

type documentFriendChecker interface {
	FriendIDsAmong(ctx context.Context, userID string, ids []string) (map[string]bool, error)
}

type activeUserLister interface {
	ListActiveIDs(ctx context.Context) ([]string, error)
}

type downloadSigner interface {
	Generate(documentID, key string) (string, time.Time, error)
	Parse(token string) (documentID, key string, err error)
}

// DocumentConfig bounds uploads and shapes generated links.
type DocumentConfig struct {
	MaxFileSize       int64
	AllowedExtensions []string
	PublicBaseURL     string
	ShareConcurrency  int
}

// RequestMeta identifies where a request came from for audit entries.
type RequestMeta struct {
	IP        string
	UserAgent string
}

// UploadFile is the file part of an upload.
type UploadFile struct {
	Name        string
	Size        int64
	ContentType string
	Body        io.Reader
}

// Download is an opened document file.
type Download struct {
	Document *models.Document
	Object   *storage.Object
}

// DocumentService manages document metadata, files and sharing.
type DocumentService struct {
	docs      documentRepository
	friends   documentFriendChecker
	users     activeUserLister
	store     storage.Store
	signer    downloadSigner
	notifier  Notifier
	audit     AuditRecorder
	validator *validator.Validate
	logger    *zap.Logger
	config    DocumentConfig
	allowed   map[string]struct{}
}

// NewDocumentService constructs a DocumentService.
func NewDocumentService(
	docs documentRepository,
	friends documentFriendChecker,
	users activeUserLister,
	store storage.Store,
	signer downloadSigner,
	notifier Notifier,
	audit AuditRecorder,
	validate *validator.Validate,
	logger *zap.Logger,
	config DocumentConfig,
) *DocumentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = NewValidator()
	}
	if config.MaxFileSize <= 0 {
		config.MaxFileSize = 50 << 20
	}
	if config.ShareConcurrency <= 0 {
		config.ShareConcurrency = 8
	}
	config.PublicBaseURL = strings.TrimRight(config.PublicBaseURL, "/")
	allowed := make(map[string]struct{}, len(config.AllowedExtensions))
	for _, ext := range config.AllowedExtensions {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		allowed[ext] = struct{}{}
	}
	return &DocumentService{
		docs:      docs,
		friends:   friends,
		users:     users,
		store:     store,
		signer:    signer,
		notifier:  notifier,
		audit:     audit,
		validator: validate,
		logger:    logger,
		config:    config,
		allowed:   allowed,
	}
}

// Upload validates and stores a new document. Nothing is written when the
// payload or file is rejected.
func (s *DocumentService) Upload(ctx context.Context, claims *models.JWTClaims, req dto.UploadDocumentRequest, file *UploadFile, meta RequestMeta) (*models.Document, error) {
	req.Title = strings.TrimSpace(req.Title)
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid document payload")
	}
	if file == nil || file.Body == nil || file.Size <= 0 {
		return nil, appErrors.WithDetails(
			appErrors.Clone(appErrors.ErrValidation, "file is required"),
			[]appErrors.FieldError{{Field: "file", Message: "is required"}},
		)
	}
	if file.Size > s.config.MaxFileSize {
		return nil, appErrors.Clone(appErrors.ErrPayloadTooLarge, fmt.Sprintf("file exceeds the %d byte limit", s.config.MaxFileSize))
	}
	ext := strings.ToLower(filepath.Ext(file.Name))
	if !s.extensionAllowed(ext) {
		return nil, appErrors.WithDetails(
			appErrors.Clone(appErrors.ErrValidation, "file type not allowed"),
			[]appErrors.FieldError{{Field: "file", Message: fmt.Sprintf("extension %q is not allowed", ext)}},
		)
	}
	if req.IsPublic && !models.RoleHasPermission(claims.Role, models.PermDocumentsPublish) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "publishing documents requires the documents:publish permission")
	}

	docID := uuid.NewString()
	fileName := docID + ext
	key := claims.UserID + "/" + fileName
	contentType := file.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	if err := s.store.Put(ctx, key, io.LimitReader(file.Body, s.config.MaxFileSize), file.Size, contentType); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store file")
	}

	doc := &models.Document{
		ID:           docID,
		OwnerID:      claims.UserID,
		Title:        req.Title,
		Description:  strings.TrimSpace(req.Description),
		Category:     models.NormalizeCategory(req.Category),
		Course:       strings.TrimSpace(req.Course),
		FileName:     fileName,
		OriginalName: filepath.Base(file.Name),
		FilePath:     key,
		MimeType:     contentType,
		SizeBytes:    file.Size,
		IsPublic:     req.IsPublic,
	}
	if err := s.docs.Create(ctx, doc); err != nil {
		if delErr := s.store.Delete(ctx, key); delErr != nil {
			s.logger.Warn("failed to remove orphaned file", zap.String("key", key), zap.Error(delErr))
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save document")
	}

	s.record(ctx, doc, &claims.UserID, models.AuditActionUpload, "uploaded "+doc.OriginalName, meta)
	return doc, nil
}

// List returns documents visible to the caller. Moderators see everything.
func (s *DocumentService) List(ctx context.Context, claims *models.JWTClaims, query dto.DocumentQuery) ([]models.Document, *models.Pagination, error) {
	filter := query.Filter()
	filter.ViewerID = claims.UserID
	filter.All = models.RoleHasPermission(claims.Role, models.PermDocumentsModerate)
	return s.list(ctx, filter)
}

// ListAll returns every document regardless of visibility.
func (s *DocumentService) ListAll(ctx context.Context, query dto.DocumentQuery) ([]models.Document, *models.Pagination, error) {
	filter := query.Filter()
	filter.All = true
	return s.list(ctx, filter)
}

// ListMine returns the caller's own documents.
func (s *DocumentService) ListMine(ctx context.Context, claims *models.JWTClaims, query dto.DocumentQuery) ([]models.Document, *models.Pagination, error) {
	filter := query.Filter()
	filter.OwnerID = claims.UserID
	filter.All = true
	return s.list(ctx, filter)
}

func (s *DocumentService) list(ctx context.Context, filter models.DocumentFilter) ([]models.Document, *models.Pagination, error) {
	filter.Page = normalizePage(filter.Page)
	filter.PageSize = normalizePageSize(filter.PageSize)
	docs, total, err := s.docs.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list documents")
	}
	if docs == nil {
		docs = []models.Document{}
	}
	return docs, models.NewPagination(filter.Page, filter.PageSize, total), nil
}

// ListSharedWithMe returns documents friends shared with the caller.
func (s *DocumentService) ListSharedWithMe(ctx context.Context, claims *models.JWTClaims, page, pageSize int) ([]models.SharedDocument, *models.Pagination, error) {
	page = normalizePage(page)
	pageSize = normalizePageSize(pageSize)
	docs, total, err := s.docs.ListSharedWith(ctx, claims.UserID, page, pageSize)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list shared documents")
	}
	if docs == nil {
		docs = []models.SharedDocument{}
	}
	return docs, models.NewPagination(page, pageSize, total), nil
}

// Get returns a document the caller may view and records the view.
func (s *DocumentService) Get(ctx context.Context, claims *models.JWTClaims, id string, meta RequestMeta) (*models.Document, error) {
	doc, err := s.visible(ctx, claims, id)
	if err != nil {
		return nil, err
	}
	if doc.OwnerID != claims.UserID {
		s.record(ctx, doc, &claims.UserID, models.AuditActionView, "viewed "+doc.Title, meta)
	}
	return doc, nil
}

// Update patches metadata. Making a document public requires documents:publish.
func (s *DocumentService) Update(ctx context.Context, claims *models.JWTClaims, id string, req dto.UpdateDocumentRequest) (*models.Document, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid document payload")
	}
	patch := req.Patch()
	if patch.Empty() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "no fields to update")
	}

	doc, err := s.managed(ctx, claims, id)
	if err != nil {
		return nil, err
	}
	if patch.IsPublic != nil && *patch.IsPublic && !doc.IsPublic && !models.RoleHasPermission(claims.Role, models.PermDocumentsPublish) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "publishing documents requires the documents:publish permission")
	}

	if patch.Title != nil {
		title := strings.TrimSpace(*patch.Title)
		if title == "" {
			return nil, appErrors.WithDetails(
				appErrors.Clone(appErrors.ErrValidation, "invalid document payload"),
				[]appErrors.FieldError{{Field: "title", Message: "is required"}},
			)
		}
		doc.Title = title
	}
	if patch.Description != nil {
		doc.Description = strings.TrimSpace(*patch.Description)
	}
	if patch.Category != nil {
		doc.Category = *patch.Category
	}
	if patch.Course != nil {
		doc.Course = strings.TrimSpace(*patch.Course)
	}
	if patch.IsPublic != nil {
		doc.IsPublic = *patch.IsPublic
	}

	if err := s.docs.Update(ctx, doc); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "document not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update document")
	}
	return doc, nil
}

// Delete removes a document and then its file. File removal is best-effort.
func (s *DocumentService) Delete(ctx context.Context, claims *models.JWTClaims, id string, meta RequestMeta) error {
	doc, err := s.managed(ctx, claims, id)
	if err != nil {
		return err
	}
	if err := s.docs.Delete(ctx, doc.ID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "document not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete document")
	}
	if err := s.store.Delete(ctx, doc.FilePath); err != nil {
		s.logger.Warn("failed to delete document file", zap.String("document_id", doc.ID), zap.String("key", doc.FilePath), zap.Error(err))
	}
	s.record(ctx, doc, &claims.UserID, models.AuditActionDelete, "deleted "+doc.Title, meta)
	return nil
}

// Download opens a document file for a caller allowed to view it.
func (s *DocumentService) Download(ctx context.Context, claims *models.JWTClaims, id string, meta RequestMeta) (*Download, error) {
	doc, err := s.visible(ctx, claims, id)
	if err != nil {
		return nil, err
	}
	return s.open(ctx, doc, &claims.UserID, meta)
}

// DownloadURL returns a signed, time limited link to the file.
func (s *DocumentService) DownloadURL(ctx context.Context, claims *models.JWTClaims, id string) (*dto.DownloadURLResponse, error) {
	doc, err := s.visible(ctx, claims, id)
	if err != nil {
		return nil, err
	}
	token, expiresAt, err := s.signer.Generate(doc.ID, doc.FilePath)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign download url")
	}
	return &dto.DownloadURLResponse{
		URL:       fmt.Sprintf("%s/documents/%s/file?token=%s", s.config.PublicBaseURL, doc.ID, url.QueryEscape(token)),
		ExpiresAt: expiresAt,
	}, nil
}

// DownloadSigned opens a file named by a signed download token.
func (s *DocumentService) DownloadSigned(ctx context.Context, id, token string, meta RequestMeta) (*Download, error) {
	docID, key, err := s.signer.Parse(token)
	if err != nil {
		if errors.Is(err, storage.ErrTokenExpired) {
			return nil, appErrors.Clone(appErrors.ErrUnauthorized, "download link expired")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrUnauthorized.Code, appErrors.ErrUnauthorized.Status, "invalid download link")
	}
	if docID != id {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "download link does not match document")
	}
	doc, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if doc.FilePath != key {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "download link is no longer valid")
	}
	return s.open(ctx, doc, nil, meta)
}

// GenerateShareLink assigns the document's public share token once; later
// calls return the same token.
func (s *DocumentService) GenerateShareLink(ctx context.Context, claims *models.JWTClaims, id string, meta RequestMeta) (*dto.ShareLinkResponse, error) {
	doc, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if doc.OwnerID != claims.UserID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only the owner can share this document")
	}

	token := ""
	if doc.ShareToken != nil && *doc.ShareToken != "" {
		token = *doc.ShareToken
	} else {
		candidate, err := newShareToken()
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to generate share token")
		}
		token, err = s.docs.AssignShareToken(ctx, doc.ID, candidate)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, appErrors.Clone(appErrors.ErrNotFound, "document not found")
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save share token")
		}
		s.record(ctx, doc, &claims.UserID, models.AuditActionShare, "created share link", meta)
	}

	return &dto.ShareLinkResponse{
		DocumentID: doc.ID,
		Token:      token,
		URL:        fmt.Sprintf("%s/documents/shared/%s", s.config.PublicBaseURL, token),
	}, nil
}

// GetByShareToken resolves a share link without authentication.
func (s *DocumentService) GetByShareToken(ctx context.Context, token string, meta RequestMeta) (*models.Document, error) {
	doc, err := s.byToken(ctx, token)
	if err != nil {
		return nil, err
	}
	s.record(ctx, doc, nil, models.AuditActionView, "viewed through share link", meta)
	return doc, nil
}

// DownloadByShareToken opens the file behind a share link.
func (s *DocumentService) DownloadByShareToken(ctx context.Context, token string, meta RequestMeta) (*Download, error) {
	doc, err := s.byToken(ctx, token)
	if err != nil {
		return nil, err
	}
	return s.open(ctx, doc, nil, meta)
}

// ShareWithFriends shares a document with each listed friend concurrently.
// Failures for individual friends are aggregated into one error.
func (s *DocumentService) ShareWithFriends(ctx context.Context, claims *models.JWTClaims, id string, req dto.ShareDocumentRequest, meta RequestMeta) (*dto.ShareResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid share payload")
	}
	doc, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if doc.OwnerID != claims.UserID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only the owner can share this document")
	}

	targets := dedupe(req.FriendIDs)
	friendIDs, err := s.friends.FriendIDsAmong(ctx, claims.UserID, targets)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check friendships")
	}
	var details []appErrors.FieldError
	for _, target := range targets {
		if !friendIDs[target] {
			details = append(details, appErrors.FieldError{Field: "friendIds", Message: fmt.Sprintf("%s is not your friend", target)})
		}
	}
	if len(details) > 0 {
		return nil, appErrors.WithDetails(appErrors.Clone(appErrors.ErrValidation, "documents can only be shared with friends"), details)
	}

	var (
		mu      sync.Mutex
		shared  = make([]string, 0, len(targets))
		failure error
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.config.ShareConcurrency)
	for _, target := range targets {
		target := target
		g.Go(func() error {
			err := s.docs.UpsertShare(gctx, &models.DocumentShare{DocumentID: doc.ID, SharedWith: target, SharedBy: claims.UserID})
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				failure = multierr.Append(failure, fmt.Errorf("share with %s: %w", target, err))
				return nil
			}
			shared = append(shared, target)
			return nil
		})
	}
	_ = g.Wait()

	for _, target := range shared {
		s.notify(ctx, models.Notification{
			UserID:            target,
			Type:              models.NotificationDocumentShared,
			Title:             "Document shared with you",
			Message:           fmt.Sprintf("A friend shared %q with you", doc.Title),
			RelatedUserID:     &claims.UserID,
			RelatedDocumentID: &doc.ID,
		})
	}
	if len(shared) > 0 {
		s.record(ctx, doc, &claims.UserID, models.AuditActionShare, fmt.Sprintf("shared with %d friends", len(shared)), meta)
	}

	if failure != nil {
		failed := len(multierr.Errors(failure))
		s.logger.Warn("document share partially failed",
			zap.String("document_id", doc.ID),
			zap.Int("failed", failed),
			zap.Int("shared", len(shared)),
			zap.Error(failure),
		)
		return nil, appErrors.Wrap(failure, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status,
			fmt.Sprintf("failed to share with %d of %d friends", failed, len(targets)))
	}
	return &dto.ShareResult{DocumentID: doc.ID, SharedWith: shared}, nil
}

// SetOfficial flags a document as official and announces it to every active user.
func (s *DocumentService) SetOfficial(ctx context.Context, id string, official bool) (*models.Document, error) {
	doc, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.docs.SetOfficial(ctx, doc.ID, official); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "document not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update document")
	}
	wasOfficial := doc.IsOfficial
	doc.IsOfficial = official
	if official && !wasOfficial {
		s.broadcastOfficial(ctx, doc)
	}
	return doc, nil
}

func (s *DocumentService) broadcastOfficial(ctx context.Context, doc *models.Document) {
	if s.notifier == nil || s.users == nil {
		return
	}
	ids, err := s.users.ListActiveIDs(ctx)
	if err != nil {
		s.logger.Warn("failed to list users for official announcement", zap.String("document_id", doc.ID), zap.Error(err))
		return
	}
	for _, userID := range ids {
		s.notifier.Notify(ctx, models.Notification{
			UserID:            userID,
			Type:              models.NotificationOfficialDocument,
			Title:             "New official document",
			Message:           fmt.Sprintf("%q is now an official document", doc.Title),
			RelatedDocumentID: &doc.ID,
		})
	}
}

func (s *DocumentService) load(ctx context.Context, id string) (*models.Document, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "document not found")
	}
	doc, err := s.docs.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "document not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load document")
	}
	return doc, nil
}

func (s *DocumentService) byToken(ctx context.Context, token string) (*models.Document, error) {
	if strings.TrimSpace(token) == "" {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "shared document not found")
	}
	doc, err := s.docs.GetByShareToken(ctx, token)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "shared document not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load shared document")
	}
	return doc, nil
}

// visible loads a document the caller may view: owners, moderators, anyone
// for public or official documents and users it was shared with.
func (s *DocumentService) visible(ctx context.Context, claims *models.JWTClaims, id string) (*models.Document, error) {
	doc, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if doc.OwnerID == claims.UserID || doc.IsPublic || doc.IsOfficial ||
		models.RoleHasPermission(claims.Role, models.PermDocumentsModerate) {
		return doc, nil
	}
	shared, err := s.docs.IsSharedWith(ctx, doc.ID, claims.UserID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check document access")
	}
	if !shared {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "you do not have access to this document")
	}
	return doc, nil
}

// managed loads a document the caller may edit or delete.
func (s *DocumentService) managed(ctx context.Context, claims *models.JWTClaims, id string) (*models.Document, error) {
	doc, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if doc.OwnerID != claims.UserID && !models.RoleHasPermission(claims.Role, models.PermDocumentsModerate) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only the owner can modify this document")
	}
	return doc, nil
}

func (s *DocumentService) open(ctx context.Context, doc *models.Document, actorID *string, meta RequestMeta) (*Download, error) {
	obj, err := s.store.Open(ctx, doc.FilePath)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "document file not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open document file")
	}
	if err := s.docs.IncrementDownloads(ctx, doc.ID); err != nil {
		s.logger.Warn("failed to increment download counter", zap.String("document_id", doc.ID), zap.Error(err))
	} else {
		doc.Downloads++
	}
	description := "downloaded " + doc.Title
	if actorID == nil {
		description = "downloaded through link"
	}
	s.record(ctx, doc, actorID, models.AuditActionDownload, description, meta)
	return &Download{Document: doc, Object: obj}, nil
}

func (s *DocumentService) record(ctx context.Context, doc *models.Document, actorID *string, action models.AuditAction, description string, meta RequestMeta) {
	if s.audit == nil {
		return
	}
	docID := doc.ID
	s.audit.Record(ctx, models.AuditLog{
		UserID:      doc.OwnerID,
		ActorID:     actorID,
		DocumentID:  &docID,
		Action:      action,
		Description: description,
		IPAddress:   meta.IP,
		UserAgent:   meta.UserAgent,
	})
}

func (s *DocumentService) notify(ctx context.Context, n models.Notification) {
	if s.notifier == nil {
		return
	}
	s.notifier.Notify(ctx, n)
}

func (s *DocumentService) extensionAllowed(ext string) bool {
	if len(s.allowed) == 0 {
		return ext != ""
	}
	_, ok := s.allowed[ext]
	return ok
}

func newShareToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
