package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"subtrack/internal/core"
	applog "subtrack/internal/log"
	"subtrack/internal/ports"
)

// amountValue accepts a JSON number or string and keeps its decimal text.
type amountValue string

func (a *amountValue) UnmarshalJSON(data []byte) error {
	s := strings.TrimSpace(string(data))
	if s == "null" {
		*a = ""
		return nil
	}
	if strings.HasPrefix(s, `"`) {
		var str string
		if err := json.Unmarshal(data, &str); err != nil {
			return err
		}
		*a = amountValue(str)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("amount must be a number or string")
	}
	*a = amountValue(n.String())
	return nil
}

type chargeRequest struct {
	Name         string      `json:"name" validate:"required,max=200"`
	Amount       amountValue `json:"amount" validate:"required"`
	BillingCycle string      `json:"billing_cycle" validate:"required,billing_cycle"`
	Status       string      `json:"status" validate:"omitempty,charge_status"`
	Currency     string      `json:"currency" validate:"omitempty,len=3,alpha"`
}

func (req chargeRequest) input() core.ChargeInput {
	return core.ChargeInput{
		Name:         sanitizeInput(req.Name),
		Amount:       strings.TrimSpace(string(req.Amount)),
		BillingCycle: req.BillingCycle,
		Status:       req.Status,
		Currency:     req.Currency,
	}.Normalized()
}

type chargeList struct {
	Charges []core.RawCharge `json:"charges"`
	Count   int              `json:"count"`
}

// readCharge decodes and validates a charge body, writing the error
// response itself when it fails.
func (s *Server) readCharge(w http.ResponseWriter, r *http.Request) (core.ChargeInput, bool) {
	var req chargeRequest
	if err := DecodeJSON(w, r, &req); err != nil {
		BadRequestError(err.Error()).Write(w)
		return core.ChargeInput{}, false
	}
	if err := s.validator.Validate(req); err != nil {
		ValidationError("invalid charge", fieldErrors(err)).Write(w)
		return core.ChargeInput{}, false
	}
	in := req.input()
	if err := in.Validate(); err != nil {
		ValidationError(err.Error(), nil).Write(w)
		return core.ChargeInput{}, false
	}
	return in, true
}

// writeStoreError maps store errors to responses.
func (s *Server) writeStoreError(w http.ResponseWriter, r *http.Request, err error, op string, id int64) {
	switch {
	case errors.Is(err, ports.ErrNotFound):
		NotFoundError(fmt.Sprintf("charge %d not found", id)).Write(w)
	case isValidationErr(err):
		ValidationError(err.Error(), nil).Write(w)
	default:
		s.log.LogError(r.Context(), "Charge store operation failed", err, applog.ComponentStorage, op,
			applog.NewFields().WithCharge(id, "", "", "", ""))
		InternalServerError("charge store error").Write(w)
	}
}

func isValidationErr(err error) bool {
	for _, target := range []error{
		core.ErrEmptyName, core.ErrNameTooLong, core.ErrInvalidAmount,
		core.ErrInvalidCycle, core.ErrInvalidStatus, core.ErrInvalidCurrency,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

func (s *Server) handleListCharges(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	win, err := ParseWindow(q)
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}

	var filter ports.ChargeFilter
	if status := strings.TrimSpace(q.Get("status")); status != "" {
		if !core.ParseStatus(status).Known() {
			BadRequestError(fmt.Sprintf("invalid status %q", status)).Write(w)
			return
		}
		filter.Status = status
	}
	if !win.From.IsZero() {
		filter.CreatedFrom = &win.From
	}
	if !win.To.IsZero() {
		monthStart := time.Date(win.To.Year(), win.To.Month(), 1, 0, 0, 0, 0, time.UTC)
		end := monthStart.AddDate(0, 1, 0).Add(-time.Nanosecond)
		filter.CreatedTo = &end
	}

	charges, err := s.charges.ListCharges(r.Context(), filter)
	if err != nil {
		s.writeStoreError(w, r, err, applog.OpList, 0)
		return
	}
	if charges == nil {
		charges = []core.RawCharge{}
	}
	NewJSONResponse().Data(chargeList{Charges: charges, Count: len(charges)}).Write(w)
}

func (s *Server) handleGetCharge(w http.ResponseWriter, r *http.Request) {
	id, err := ParseID(r)
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	c, err := s.charges.GetCharge(r.Context(), id)
	if err != nil {
		s.writeStoreError(w, r, err, applog.OpRead, id)
		return
	}
	NewJSONResponse().Data(c).Write(w)
}

func (s *Server) handleCreateCharge(w http.ResponseWriter, r *http.Request) {
	in, ok := s.readCharge(w, r)
	if !ok {
		return
	}
	id, err := s.charges.CreateCharge(r.Context(), in)
	if err != nil {
		s.writeStoreError(w, r, err, applog.OpCreate, 0)
		return
	}
	s.log.LogChargeMutation(r.Context(), applog.OpCreate, id, in.Name, in.Amount, in.BillingCycle, in.Currency)

	NewJSONResponse().
		Status(http.StatusCreated).
		Header("Location", "/api/v1/charges/"+strconv.FormatInt(id, 10)).
		Data(map[string]int64{"id": id}).
		Write(w)
}

func (s *Server) handleUpdateCharge(w http.ResponseWriter, r *http.Request) {
	id, err := ParseID(r)
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	in, ok := s.readCharge(w, r)
	if !ok {
		return
	}
	if err := s.charges.UpdateCharge(r.Context(), id, in); err != nil {
		s.writeStoreError(w, r, err, applog.OpUpdate, id)
		return
	}
	s.log.LogChargeMutation(r.Context(), applog.OpUpdate, id, in.Name, in.Amount, in.BillingCycle, in.Currency)
	NewJSONResponse().Data(map[string]int64{"id": id}).Write(w)
}

func (s *Server) handleDeleteCharge(w http.ResponseWriter, r *http.Request) {
	id, err := ParseID(r)
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	if err := s.charges.DeleteCharge(r.Context(), id); err != nil {
		s.writeStoreError(w, r, err, applog.OpDelete, id)
		return
	}
	s.log.LogChargeMutation(r.Context(), applog.OpDelete, id, "", "", "", "")
	NewJSONResponse().Status(http.StatusNoContent).Write(w)
}
