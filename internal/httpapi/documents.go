package httpapi

import (
	"context"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	apphttp "github.com/wolfeidau/storefront/internal/http"
	"github.com/wolfeidau/storefront/internal/apperr"
	"github.com/wolfeidau/storefront/internal/documents"
	"github.com/wolfeidau/storefront/internal/models"
	"github.com/wolfeidau/storefront/internal/store"
	"github.com/wolfeidau/storefront/internal/tracking"
)

// kindsByPath maps the admin collection names onto document kinds.
var kindsByPath = map[string]models.DocumentKind{
	"orders":    models.KindOrder,
	"donations": models.KindDonation,
	"pledges":   models.KindPledge,
}

type transitionRequest struct {
	Status string `json:"status"`
}

func pathKind(r *http.Request) (models.DocumentKind, error) {
	kind, ok := kindsByPath[r.PathValue("kind")]
	if !ok {
		return "", apperr.NotFound("unknown collection %q", r.PathValue("kind"))
	}
	return kind, nil
}

func pathDocument(r *http.Request) (models.DocumentKind, uuid.UUID, error) {
	kind, err := pathKind(r)
	if err != nil {
		return "", uuid.Nil, err
	}
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		return "", uuid.Nil, apperr.NotFound("%s not found", kind)
	}
	return kind, id, nil
}

func queryInt(r *http.Request, name string) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, apperr.Validation("%s must be an integer", name)
	}
	return v, nil
}

func (s *Server) handleListDocuments(ctx context.Context, tx store.Tx, r *http.Request, _ *models.Principal) (int, any, error) {
	kind, err := pathKind(r)
	if err != nil {
		return 0, nil, err
	}

	limit, err := queryInt(r, "limit")
	if err != nil {
		return 0, nil, err
	}
	offset, err := queryInt(r, "offset")
	if err != nil {
		return 0, nil, err
	}

	params := documents.ListParams{
		Status: r.URL.Query().Get("status"),
		Limit:  limit,
		Offset: offset,
	}
	docs, err := documents.List(ctx, tx, kind, params)
	if err != nil {
		return 0, nil, err
	}

	if params.Limit == 0 {
		params.Limit = documents.DefaultListLimit
	}
	resp := documentListResponse{
		Items:  make([]documentResponse, 0, len(docs)),
		Limit:  params.Limit,
		Offset: params.Offset,
	}
	for _, d := range docs {
		resp.Items = append(resp.Items, newDocumentResponse(d))
	}

	return http.StatusOK, resp, nil
}

func (s *Server) handleGetDocument(ctx context.Context, tx store.Tx, r *http.Request, _ *models.Principal) (int, any, error) {
	kind, id, err := pathDocument(r)
	if err != nil {
		return 0, nil, err
	}

	doc, err := documents.Get(ctx, tx, kind, id)
	if err != nil {
		return 0, nil, err
	}

	return http.StatusOK, newDocumentResponse(doc), nil
}

func (s *Server) handleTransitionDocument(ctx context.Context, tx store.Tx, r *http.Request, _ *models.Principal) (int, any, error) {
	kind, id, err := pathDocument(r)
	if err != nil {
		return 0, nil, err
	}

	var req transitionRequest
	if err := decodeJSON(r, &req); err != nil {
		return 0, nil, err
	}

	doc, err := documents.Transition(ctx, tx, kind, id, req.Status)
	if err != nil {
		return 0, nil, err
	}

	return http.StatusOK, newDocumentResponse(doc), nil
}

func (s *Server) handleVisit(ctx context.Context, tx store.Tx, r *http.Request, _ *models.Tenant) (int, any, error) {
	var in tracking.VisitInput
	if err := decodeJSON(r, &in); err != nil {
		return 0, nil, err
	}

	visit, err := s.recorder.RecordVisit(ctx, tx, in, apphttp.ClientIPFromContext(ctx), r.UserAgent())
	if err != nil {
		return 0, nil, err
	}

	return http.StatusCreated, visitResponse{VisitID: visit.VisitID}, nil
}

func (s *Server) handleSubmitOrder(ctx context.Context, tx store.Tx, r *http.Request, tenant *models.Tenant) (int, any, error) {
	var in documents.OrderInput
	if err := decodeJSON(r, &in); err != nil {
		return 0, nil, err
	}

	order, err := documents.SubmitOrder(ctx, tx, tenant, in)
	if err != nil {
		return 0, nil, err
	}

	return http.StatusCreated, newSubmissionResponse(order.DocumentMeta, order.TotalAmount), nil
}

func (s *Server) handleSubmitDonation(ctx context.Context, tx store.Tx, r *http.Request, tenant *models.Tenant) (int, any, error) {
	var in documents.DonationInput
	if err := decodeJSON(r, &in); err != nil {
		return 0, nil, err
	}

	donation, err := documents.SubmitDonation(ctx, tx, tenant, in)
	if err != nil {
		return 0, nil, err
	}

	return http.StatusCreated, newSubmissionResponse(donation.DocumentMeta, donation.Amount), nil
}

func (s *Server) handleSubmitPledge(ctx context.Context, tx store.Tx, r *http.Request, tenant *models.Tenant) (int, any, error) {
	var in documents.PledgeInput
	if err := decodeJSON(r, &in); err != nil {
		return 0, nil, err
	}

	pledge, err := documents.SubmitPledge(ctx, tx, tenant, in)
	if err != nil {
		return 0, nil, err
	}

	return http.StatusCreated, newSubmissionResponse(pledge.DocumentMeta, pledge.Amount), nil
}
