package count

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jhoicas/stockcount-api/internal/application/dto"
	"github.com/jhoicas/stockcount-api/internal/domain"
	countrules "github.com/jhoicas/stockcount-api/internal/domain/count"
	"github.com/jhoicas/stockcount-api/internal/domain/entity"
	"github.com/jhoicas/stockcount-api/internal/domain/repository"
	"github.com/jhoicas/stockcount-api/pkg/logger"
	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/search"
)

const maxRecentLimit = 100

// CaptureInputDTO entrada de una captura de conteo.
type CaptureInputDTO struct {
	SessionID            string
	ProductCodeVersionID string
	Quantity             decimal.Decimal
	Mode                 string // add | set; vacío = add
	Comment              string
	ActorID              string
}

// CaptureUseCase acepta lecturas de varios contadores en paralelo.
// El incremento/sobrescritura se aplica en el almacenamiento bajo un bloqueo compartido de la sesión,
// así dos capturas add simultáneas sobre la misma línea se reflejan ambas.
type CaptureUseCase struct {
	tx           TxRunner
	sessions     repository.CountSessionRepository
	lines        repository.CountLineRepository
	catalog      repository.CatalogRepository
	metrics      Metrics
	log          *logger.Logger
	now          func() time.Time
	defaultLimit int
}

// NewCaptureUseCase construye el motor de captura. recentLimit es el tamaño por defecto de ListRecent.
func NewCaptureUseCase(
	tx TxRunner,
	sessions repository.CountSessionRepository,
	lines repository.CountLineRepository,
	catalog repository.CatalogRepository,
	metrics Metrics,
	log *logger.Logger,
	recentLimit int,
) *CaptureUseCase {
	if recentLimit <= 0 {
		recentLimit = 20
	}
	return &CaptureUseCase{
		tx:           tx,
		sessions:     sessions,
		lines:        lines,
		catalog:      catalog,
		metrics:      metrics,
		log:          log,
		now:          time.Now,
		defaultLimit: recentLimit,
	}
}

// Capture aplica una lectura. En una sesión open crea o actualiza la línea; en review solo
// acepta líneas con recuento pedido y las devuelve a pending. Otros estados: ErrSessionNotOpen.
func (uc *CaptureUseCase) Capture(ctx context.Context, in CaptureInputDTO) (*entity.CountLine, error) {
	if in.Mode == "" {
		in.Mode = entity.CaptureModeAdd
	}
	if in.SessionID == "" || in.ProductCodeVersionID == "" || in.ActorID == "" {
		return nil, domain.ErrInvalidInput
	}
	if in.Mode != entity.CaptureModeAdd && in.Mode != entity.CaptureModeSet {
		return nil, domain.ErrInvalidInput
	}
	if in.Mode == entity.CaptureModeSet && in.Quantity.IsNegative() {
		return nil, domain.ErrInvalidQuantity
	}
	if !countrules.ValidQuantityScale(in.Quantity) {
		return nil, fmt.Errorf("%w: máximo %d decimales", domain.ErrInvalidQuantity, countrules.QuantityScale)
	}

	session, err := uc.sessions.GetByID(ctx, in.SessionID)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, domain.ErrNotFound
	}
	if err := uc.authorizeCounter(ctx, session, in.ActorID); err != nil {
		return nil, err
	}
	product, err := uc.catalog.GetProduct(ctx, in.ProductCodeVersionID)
	if err != nil {
		return nil, err
	}
	if product == nil {
		return nil, domain.ErrUnknownProduct
	}

	capture := repository.CaptureInput{
		SessionID:            in.SessionID,
		ProductCodeVersionID: in.ProductCodeVersionID,
		Quantity:             in.Quantity,
		Mode:                 in.Mode,
		Comment:              strings.TrimSpace(in.Comment),
		ActorID:              in.ActorID,
		CostCents:            product.CostCents,
		At:                   uc.now().UTC(),
	}

	var line *entity.CountLine
	err = uc.tx.Run(ctx, func(r TxRepos) error {
		status, err := r.Sessions.LockForCapture(ctx, in.SessionID)
		if err != nil {
			return err
		}
		switch status {
		case entity.SessionStatusOpen:
			line, err = r.Lines.Capture(ctx, capture)
			return err
		case entity.SessionStatusReview:
			line, err = r.Lines.Recapture(ctx, capture)
			if err != nil {
				return err
			}
			if line == nil {
				return domain.ErrSessionNotOpen
			}
			return nil
		default:
			return domain.ErrSessionNotOpen
		}
	})
	if err != nil {
		uc.metrics.CaptureApplied(in.Mode, "rejected")
		uc.log.Debug().Err(err).
			Str("session_id", in.SessionID).
			Str("product_code_version_id", in.ProductCodeVersionID).
			Msg("captura rechazada")
		return nil, err
	}
	uc.metrics.CaptureApplied(in.Mode, "applied")
	uc.log.Debug().
		Str("session_id", in.SessionID).
		Str("line_id", line.ID).
		Str("mode", in.Mode).
		Str("counted_qty", line.CountedQty.String()).
		Msg("captura aplicada")
	return line, nil
}

// authorizeCounter: el actor debe existir y estar activo; si la sesión tiene contadores asignados
// solo ellos (o un supervisor/admin) capturan.
func (uc *CaptureUseCase) authorizeCounter(ctx context.Context, session *entity.CountSession, actorID string) error {
	user, err := uc.catalog.GetUser(ctx, actorID)
	if err != nil {
		return err
	}
	if user == nil || !user.Active {
		return domain.ErrForbidden
	}
	if len(session.Counters) == 0 || session.HasCounter(actorID) {
		return nil
	}
	if user.Role == entity.RoleSupervisor || user.Role == entity.RoleAdmin {
		return nil
	}
	return domain.ErrForbidden
}

// ListRecent devuelve las últimas capturas de la sesión (más reciente primero).
func (uc *CaptureUseCase) ListRecent(ctx context.Context, sessionID string, limit int) ([]dto.CountLineResponse, error) {
	if limit <= 0 {
		limit = uc.defaultLimit
	}
	if limit > maxRecentLimit {
		limit = maxRecentLimit
	}
	session, err := uc.sessions.GetByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, domain.ErrNotFound
	}
	lines, err := uc.lines.ListRecent(ctx, sessionID, limit)
	if err != nil {
		return nil, err
	}
	products, err := uc.catalog.GetProducts(ctx, productIDs(lines))
	if err != nil {
		return nil, err
	}
	out := make([]dto.CountLineResponse, 0, len(lines))
	for _, l := range lines {
		out = append(out, ToLineResponse(l, products[l.ProductCodeVersionID]))
	}
	return out, nil
}

// ListItems lista las líneas de la sesión filtradas por texto (código, descripción o ubicación),
// sin distinguir mayúsculas ni tildes, con paginación.
func (uc *CaptureUseCase) ListItems(ctx context.Context, sessionID, query string, page dto.PageRequest) (*dto.CountLineListResponse, error) {
	page.DefaultPage()
	if page.Limit > maxRecentLimit {
		page.Limit = maxRecentLimit
	}
	session, err := uc.sessions.GetByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, domain.ErrNotFound
	}
	lines, err := uc.lines.ListBySession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	products, err := uc.catalog.GetProducts(ctx, productIDs(lines))
	if err != nil {
		return nil, err
	}

	matches := newTextMatcher(query)
	filtered := make([]dto.CountLineResponse, 0, len(lines))
	for _, l := range lines {
		p := products[l.ProductCodeVersionID]
		if !matches(l, p) {
			continue
		}
		filtered = append(filtered, ToLineResponse(l, p))
	}

	total := len(filtered)
	start := page.Offset
	if start > total {
		start = total
	}
	end := start + page.Limit
	if end > total {
		end = total
	}
	return &dto.CountLineListResponse{
		Items: filtered[start:end],
		Page:  dto.PageResponse{Limit: page.Limit, Offset: page.Offset, Total: total},
	}, nil
}

// newTextMatcher compila la búsqueda una sola vez; consulta vacía coincide con todo.
func newTextMatcher(query string) func(*entity.CountLine, *entity.ProductCodeVersion) bool {
	query = strings.TrimSpace(query)
	if query == "" {
		return func(*entity.CountLine, *entity.ProductCodeVersion) bool { return true }
	}
	pattern := search.New(language.Spanish, search.IgnoreCase, search.IgnoreDiacritics).CompileString(query)
	contains := func(s string) bool {
		start, _ := pattern.IndexString(s)
		return start >= 0
	}
	return func(l *entity.CountLine, p *entity.ProductCodeVersion) bool {
		if contains(l.ProductCodeVersionID) {
			return true
		}
		if p == nil {
			return false
		}
		return contains(p.Code) || contains(p.Description) || contains(p.Location)
	}
}

// Describe completa la línea con los datos del producto para responder al cliente.
func (uc *CaptureUseCase) Describe(ctx context.Context, line *entity.CountLine) (dto.CountLineResponse, error) {
	product, err := uc.catalog.GetProduct(ctx, line.ProductCodeVersionID)
	if err != nil {
		return dto.CountLineResponse{}, err
	}
	return ToLineResponse(line, product), nil
}
