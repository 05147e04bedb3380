package inventory

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/garnizeh/probetas/pkg/models"
)

const dateLayout = time.DateOnly

var dateLayouts = []string{
	time.DateOnly,
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
}

// Number is a measurement sent either as a JSON number or as a numeric
// string. An empty string decodes to no value.
type Number struct {
	Value *float64
}

func NewNumber(v float64) *Number {
	return &Number{Value: &v}
}

func (n *Number) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if string(b) == "null" {
		n.Value = nil
		return nil
	}

	var f float64
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		s = strings.TrimSpace(s)
		if s == "" {
			n.Value = nil
			return nil
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return fmt.Errorf("not a number: %q", s)
		}
		f = v
	} else if err := json.Unmarshal(b, &f); err != nil {
		return err
	}

	if math.IsNaN(f) || math.IsInf(f, 0) {
		return fmt.Errorf("not a finite number")
	}
	n.Value = &f
	return nil
}

func (n *Number) ptr() *float64 {
	if n == nil {
		return nil
	}
	return n.Value
}

// BatchInput is the client payload for creating or replacing a batch. A nil
// Specimens slice means the key was absent (or null); an empty slice is an
// explicit empty list.
type BatchInput struct {
	Name        string          `json:"name"`
	Date        string          `json:"date"`
	Description string          `json:"description"`
	Specimens   []SpecimenInput `json:"specimens"`
}

// SpecimenInput is the client payload for one specimen. BatchID is only read
// by the single create.
type SpecimenInput struct {
	BatchID           string  `json:"batch_id"`
	Orden             string  `json:"orden"`
	Fecha             string  `json:"fecha"`
	Orientacion       string  `json:"orientacion"`
	Descripcion       string  `json:"descripcion"`
	Ensayo            string  `json:"ensayo"`
	TipoFibra         string  `json:"tipoFibra"`
	FuerzaMaxima      *Number `json:"fuerzaMaxima"`
	ModuloElasticidad *Number `json:"moduloElasticidad"`
	TipoResina        string  `json:"tipoResina"`
	CuradoTempHum     string  `json:"curadoTempHum"`
}

// SpecimenPatch is a partial update. A nil field is left unchanged; an empty
// string clears a text field and an empty Number clears a measurement.
type SpecimenPatch struct {
	Orden             *string `json:"orden"`
	Fecha             *string `json:"fecha"`
	Orientacion       *string `json:"orientacion"`
	Descripcion       *string `json:"descripcion"`
	Ensayo            *string `json:"ensayo"`
	TipoFibra         *string `json:"tipoFibra"`
	FuerzaMaxima      *Number `json:"fuerzaMaxima"`
	ModuloElasticidad *Number `json:"moduloElasticidad"`
	TipoResina        *string `json:"tipoResina"`
	CuradoTempHum     *string `json:"curadoTempHum"`
}

// ParseDate accepts a calendar day or an RFC 3339 timestamp and returns the
// day as YYYY-MM-DD.
func ParseDate(field, s string) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", invalid(field, "is required")
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format(dateLayout), nil
		}
	}

	return "", invalid(field, "must be a date (YYYY-MM-DD)")
}

// text trims s and checks its length in characters.
func text(field, s string, minLen, maxLen int) (string, error) {
	s = strings.TrimSpace(s)
	n := utf8.RuneCountInString(s)
	if n < minLen {
		if minLen == 1 {
			return "", invalid(field, "is required")
		}
		return "", invalid(field, "must be at least %d characters", minLen)
	}
	if n > maxLen {
		return "", invalid(field, "must be at most %d characters", maxLen)
	}
	return s, nil
}

func (in BatchInput) batch() (*models.Batch, error) {
	name, err := text("name", in.Name, 3, 255)
	if err != nil {
		return nil, err
	}
	date, err := ParseDate("date", in.Date)
	if err != nil {
		return nil, err
	}
	desc, err := text("description", in.Description, 0, 1000)
	if err != nil {
		return nil, err
	}

	return &models.Batch{Name: name, Date: date, Description: desc}, nil
}

// specimens converts the bulk list. Entries without a fecha take the batch
// date. The result is nil only when the list itself is nil.
func (in BatchInput) specimens(batchDate, actorID string) ([]models.Specimen, error) {
	if in.Specimens == nil {
		return nil, nil
	}

	out := make([]models.Specimen, 0, len(in.Specimens))
	for i, si := range in.Specimens {
		if strings.TrimSpace(si.Fecha) == "" {
			si.Fecha = batchDate
		}
		s, err := si.specimen(fmt.Sprintf("specimens[%d].", i))
		if err != nil {
			return nil, err
		}
		s.CreatedBy = actorID
		out = append(out, *s)
	}

	return out, nil
}

// specimen validates the entry and converts it; prefix is prepended to field
// names in errors.
func (in SpecimenInput) specimen(prefix string) (*models.Specimen, error) {
	var (
		s   models.Specimen
		err error
	)
	if s.Orden, err = text(prefix+"orden", in.Orden, 1, 50); err != nil {
		return nil, err
	}
	if s.Fecha, err = ParseDate(prefix+"fecha", in.Fecha); err != nil {
		return nil, err
	}
	if s.Orientacion, err = text(prefix+"orientacion", in.Orientacion, 0, 100); err != nil {
		return nil, err
	}
	if s.Descripcion, err = text(prefix+"descripcion", in.Descripcion, 0, 500); err != nil {
		return nil, err
	}
	if s.Ensayo, err = text(prefix+"ensayo", in.Ensayo, 0, 100); err != nil {
		return nil, err
	}
	if s.TipoFibra, err = text(prefix+"tipoFibra", in.TipoFibra, 0, 200); err != nil {
		return nil, err
	}
	if s.TipoResina, err = text(prefix+"tipoResina", in.TipoResina, 0, 200); err != nil {
		return nil, err
	}
	if s.CuradoTempHum, err = text(prefix+"curadoTempHum", in.CuradoTempHum, 0, 200); err != nil {
		return nil, err
	}
	s.FuerzaMaxima = in.FuerzaMaxima.ptr()
	s.ModuloElasticidad = in.ModuloElasticidad.ptr()

	return &s, nil
}

// apply validates the patch and writes the present fields onto s.
func (p SpecimenPatch) apply(s *models.Specimen) error {
	set := func(dst *string, src *string, field string, minLen, maxLen int) error {
		if src == nil {
			return nil
		}
		v, err := text(field, *src, minLen, maxLen)
		if err != nil {
			return err
		}
		*dst = v
		return nil
	}

	if err := set(&s.Orden, p.Orden, "orden", 1, 50); err != nil {
		return err
	}
	if p.Fecha != nil {
		d, err := ParseDate("fecha", *p.Fecha)
		if err != nil {
			return err
		}
		s.Fecha = d
	}
	if err := set(&s.Orientacion, p.Orientacion, "orientacion", 0, 100); err != nil {
		return err
	}
	if err := set(&s.Descripcion, p.Descripcion, "descripcion", 0, 500); err != nil {
		return err
	}
	if err := set(&s.Ensayo, p.Ensayo, "ensayo", 0, 100); err != nil {
		return err
	}
	if err := set(&s.TipoFibra, p.TipoFibra, "tipoFibra", 0, 200); err != nil {
		return err
	}
	if err := set(&s.TipoResina, p.TipoResina, "tipoResina", 0, 200); err != nil {
		return err
	}
	if err := set(&s.CuradoTempHum, p.CuradoTempHum, "curadoTempHum", 0, 200); err != nil {
		return err
	}
	if p.FuerzaMaxima != nil {
		s.FuerzaMaxima = p.FuerzaMaxima.Value
	}
	if p.ModuloElasticidad != nil {
		s.ModuloElasticidad = p.ModuloElasticidad.Value
	}

	return nil
}
