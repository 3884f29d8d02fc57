package certificate

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/akannigil/oxygen-documentor-sub000/internal/model"
)

// Certificate attributes that can be mapped to row columns.
const (
	AttrCertificateID = "certificateId"
	AttrHolderName    = "holderName"
	AttrTitle         = "title"
	AttrIssueDate     = "issueDate"
	AttrIssuer        = "issuer"
	AttrGrade         = "grade"
	AttrExpiryDate    = "expiryDate"
)

var attributes = []string{
	AttrCertificateID, AttrHolderName, AttrTitle, AttrIssueDate, AttrIssuer, AttrGrade, AttrExpiryDate,
}

// Candidates lists, per attribute, the column names tried when no explicit
// mapping exists. Names are compared case-insensitively and the first
// column present with a non-empty value wins.
var Candidates = map[string][]string{
	AttrCertificateID: {"certificateId", "certificate_id", "certificate_number", "cert_id", "id", "reference", "ref", "number", "numero"},
	AttrHolderName:    {"holderName", "holder_name", "fullName", "full_name", "name", "recipient", "student", "participant", "nom"},
	AttrTitle:         {"title", "certificate_title", "course", "course_name", "training", "formation", "titre"},
	AttrIssueDate:     {"issueDate", "issue_date", "issued_at", "issued_on", "date", "completion_date", "date_emission"},
	AttrIssuer:        {"issuer", "issued_by", "organization", "organisation", "institution", "company", "emetteur"},
	AttrGrade:         {"grade", "score", "mention", "result", "note"},
	AttrExpiryDate:    {"expiryDate", "expiry_date", "expires_at", "expiration_date", "valid_until"},
}

// Resolver builds certificate data from a row.
type Resolver struct {
	logger *zap.Logger
}

// NewResolver creates a Resolver.
func NewResolver(logger *zap.Logger) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{logger: logger}
}

// Resolve assembles Data from row. Attributes with an explicit mapping in
// dir read only their mapped column; the others fall back to Candidates.
// When several candidate columns hold different values, the first one is
// used and a warning names the alternatives.
func (r *Resolver) Resolve(row model.Row, dir *model.AuthDirective) Data {
	var mapping map[string]string
	if dir != nil {
		mapping = lowerKeys(dir.FieldMapping)
	}

	values := make(map[string]string, len(attributes))
	for _, attr := range attributes {
		if col, ok := mapping[strings.ToLower(attr)]; ok {
			if v, ok := row.Lookup(col); ok {
				values[attr] = stringify(v)
			}
			continue
		}
		values[attr] = r.detect(row, attr)
	}

	d := Data{
		CertificateID: values[AttrCertificateID],
		HolderName:    values[AttrHolderName],
		Title:         values[AttrTitle],
		IssueDate:     values[AttrIssueDate],
		Issuer:        values[AttrIssuer],
		Grade:         values[AttrGrade],
		ExpiryDate:    values[AttrExpiryDate],
	}
	if dir != nil {
		if d.Issuer == "" {
			d.Issuer = dir.Issuer
		}
		d.Metadata = metadata(row, dir.MetadataColumns)
	}
	return d
}

// metadata copies the non-empty values of columns from row.
func metadata(row model.Row, columns []string) map[string]string {
	var out map[string]string
	for _, col := range columns {
		v, ok := row.Lookup(col)
		if !ok {
			continue
		}
		if s := stringify(v); s != "" {
			if out == nil {
				out = make(map[string]string, len(columns))
			}
			out[col] = s
		}
	}
	return out
}

func (r *Resolver) detect(row model.Row, attr string) string {
	var chosen, chosenCol string
	var others []string
	for _, col := range Candidates[attr] {
		v, ok := row.Lookup(col)
		if !ok {
			continue
		}
		s := stringify(v)
		if s == "" {
			continue
		}
		if chosenCol == "" {
			chosen, chosenCol = s, col
			continue
		}
		if s != chosen {
			others = append(others, col)
		}
	}
	if len(others) > 0 {
		r.logger.Warn("ambiguous certificate field, using first candidate",
			zap.String("attribute", attr),
			zap.String("column", chosenCol),
			zap.Strings("ignored", others))
	}
	return chosen
}

// lowerKeys lower-cases the attribute keys of an explicit mapping.
func lowerKeys(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		if v != "" {
			out[strings.ToLower(k)] = v
		}
	}
	return out
}

func stringify(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(val)
	case time.Time:
		return val.Format("2006-01-02")
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	default:
		return strings.TrimSpace(fmt.Sprint(val))
	}
}
