package router

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/paulmach/orb"

	"github.com/mohammed-shakir/bikeways-nearby/internal/core/model"
	"github.com/mohammed-shakir/bikeways-nearby/internal/datasource"
)

const defaultTolerance = 25.0

// LayerCatalog is the part of datasource.Bikeways the layer handlers need.
type LayerCatalog interface {
	Layers() []datasource.BikewayLayer
	Network(ctx context.Context, name string) (*datasource.BikewayNetwork, error)
}

type LayerHandlers struct {
	log      *slog.Logger
	layers   LayerCatalog
	validate *validator.Validate
}

func NewLayers(log *slog.Logger, layers LayerCatalog) *LayerHandlers {
	return &LayerHandlers{log: log, layers: layers, validate: validator.New()}
}

func (h *LayerHandlers) Routes(r chi.Router) {
	r.Get("/layers", observe("/layers", h.list))
	r.Route("/layers/{name}", func(r chi.Router) {
		r.Get("/popup", observe("/layers/{name}/popup", h.popupAt))
		r.Get("/features/{fid}/popup", observe("/layers/{name}/features/{fid}/popup", h.featurePopup))
	})
}

type popupQuery struct {
	Lon       float64 `validate:"gte=-180,lte=180"`
	Lat       float64 `validate:"gte=-90,lte=90"`
	Tolerance float64 `validate:"gt=0,lte=1000"`
}

type featurePopupResponse struct {
	Layer     string                `json:"layer"`
	FeatureID int                   `json:"feature_id"`
	Category  model.BikewayCategory `json:"category"`
	Popup     model.Popup           `json:"popup"`
}

func (h *LayerHandlers) list(w http.ResponseWriter, _ *http.Request) {
	layers := h.layers.Layers()
	if layers == nil {
		layers = []datasource.BikewayLayer{}
	}
	writeJSON(w, http.StatusOK, layers)
}

// popupAt answers a click on the map: the nearest feature of the layer
// within tolerance metres, with the popup anchored at the click.
func (h *LayerHandlers) popupAt(w http.ResponseWriter, r *http.Request) {
	q, err := parsePopupQuery(r)
	if err == nil {
		err = h.validate.Struct(q)
	}
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: validationMessage(err)})
		return
	}
	n, ok := h.network(w, r)
	if !ok {
		return
	}
	pt := orb.Point{q.Lon, q.Lat}
	f, err := n.FeatureAt(pt, q.Tolerance)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, popupFor(n.Layer, f, pt))
}

// featurePopup anchors the popup at the centre of the feature's bound.
func (h *LayerHandlers) featurePopup(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(chi.URLParam(r, "fid"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: fmt.Sprintf("feature id %q is not a number", chi.URLParam(r, "fid"))})
		return
	}
	n, ok := h.network(w, r)
	if !ok {
		return
	}
	f, err := n.Feature(id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, popupFor(n.Layer, f, f.Geometry.Bound().Center()))
}

func (h *LayerHandlers) network(w http.ResponseWriter, r *http.Request) (*datasource.BikewayNetwork, bool) {
	n, err := h.layers.Network(r.Context(), chi.URLParam(r, "name"))
	if err != nil {
		h.fail(w, r, err)
		return nil, false
	}
	return n, true
}

func (h *LayerHandlers) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := layerStatus(err)
	if status >= http.StatusInternalServerError {
		h.log.ErrorContext(r.Context(), "layer request failed", "layer", chi.URLParam(r, "name"), "err", err)
	}
	writeJSON(w, status, errorResponse{Error: err.Error()})
}

// layerStatus maps layer lookups to HTTP; anything else is an upstream
// dataset failure.
func layerStatus(err error) int {
	switch {
	case errors.Is(err, datasource.ErrUnknownLayer), errors.Is(err, datasource.ErrNoBikeway):
		return http.StatusNotFound
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusBadGateway
	}
}

func parsePopupQuery(r *http.Request) (popupQuery, error) {
	v := r.URL.Query()
	q := popupQuery{Tolerance: defaultTolerance}
	for _, f := range []struct {
		key      string
		dst      *float64
		required bool
	}{
		{"lon", &q.Lon, true},
		{"lat", &q.Lat, true},
		{"tolerance", &q.Tolerance, false},
	} {
		raw := v.Get(f.key)
		if raw == "" {
			if f.required {
				return q, fmt.Errorf("%s is required", f.key)
			}
			continue
		}
		x, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return q, fmt.Errorf("%s must be a number", f.key)
		}
		*f.dst = x
	}
	return q, nil
}

func popupFor(l datasource.BikewayLayer, f datasource.Bikeway, at orb.Point) featurePopupResponse {
	return featurePopupResponse{
		Layer:     l.Name,
		FeatureID: f.ID,
		Category:  f.Details.Category,
		Popup: model.Popup{
			Coord: at,
			Kind:  model.KindBikeway,
			Title: f.Details.Label(),
			Lines: f.Details.PopupLines(),
		},
	}
}
