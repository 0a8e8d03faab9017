package fixture

import (
	"fmt"
	"math/rand/v2"
	"strconv"
	"strings"
	"sync"
)

var (
	districts  = []string{"South-East", "Kweneng", "Central", "North-East", "Kgatleng"}
	visitTypes = []string{"follow-up", "new", "refill"}
	stockItems = []string{"Paracetamol 500mg", "Amoxicillin 250mg", "ORS Sachets", "Gloves (box)", "Syringes 5ml"}
	stockUnits = []string{"tablets", "capsules", "sachets", "boxes", "pieces"}
)

// WrongVariant selects how a wrong-schema fixture is wrong.
type WrongVariant string

const (
	WrongHeaders   WrongVariant = "headers"
	MissingColumns WrongVariant = "missing"
	ExtraColumns   WrongVariant = "extra"
)

// Generator builds fixtures. Identifiers, names, dates and phones are
// derived from the row index; only quantities draw from the seeded source.
type Generator struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewGenerator returns a generator seeded with seed.
func NewGenerator(seed uint64) *Generator {
	return &Generator{rng: rand.New(rand.NewPCG(seed, seed+1))}
}

func (g *Generator) intN(lo, hi int) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return lo + g.rng.IntN(hi-lo+1)
}

// field synthesizes a valid value for column on row i (1-based).
func (g *Generator) field(column string, i int) string {
	switch column {
	case "patient_id":
		return fmt.Sprintf("P%06d", i)
	case "clinic_id":
		return fmt.Sprintf("CL%03d", (i-1)%999+1)
	case "appointment_id":
		return fmt.Sprintf("A%06d", i)
	case "stock_id":
		return fmt.Sprintf("S%05d", i)
	case "first_name":
		return "FirstName" + strconv.Itoa(i)
	case "last_name":
		return "LastName" + strconv.Itoa(i)
	case "name":
		return "Clinic " + strconv.Itoa(i)
	case "district":
		return districts[(i-1)%len(districts)]
	case "phone", "phone_e164":
		return fmt.Sprintf("+2677%07d", i%10000000)
	case "email":
		return fmt.Sprintf("clinic%d@example.org", i)
	case "dob":
		return fmt.Sprintf("%04d-%02d-%02d", 1950+i%60, i%12+1, i%28+1)
	case "preferred_lang", "language":
		if i%2 == 1 {
			return "EN"
		}
		return "TSW"
	case "next_visit_date", "appointment_date":
		return fmt.Sprintf("2025-%02d-%02d", (i-1)%12+1, (i-1)%28+1)
	case "appointment_time":
		return fmt.Sprintf("%02d:00", 8+(i-1)%9)
	case "visit_type":
		return visitTypes[(i-1)%len(visitTypes)]
	case "item_name":
		return stockItems[(i-1)%len(stockItems)]
	case "on_hand_qty":
		return strconv.Itoa(g.intN(0, 500))
	case "reorder_level":
		return strconv.Itoa(g.intN(10, 100))
	case "unit":
		return stockUnits[(i-1)%len(stockUnits)]
	}
	return fmt.Sprintf("value%d", i)
}

func (g *Generator) row(s Schema, i int) []string {
	row := make([]string, len(s.Columns))
	for c, col := range s.Columns {
		row[c] = g.field(col, i)
	}
	return row
}

func (g *Generator) rows(s Schema, start, n int) [][]string {
	n = max(n, 0)
	rows := make([][]string, 0, n)
	for i := start; i < start+n; i++ {
		rows = append(rows, g.row(s, i))
	}
	return rows
}

// Valid returns n conforming rows.
func (g *Generator) Valid(s Schema, n int) *Fixture {
	return g.ValidFrom(s, 1, n)
}

// ValidFrom returns n conforming rows whose identifiers start at start.
func (g *Generator) ValidFrom(s Schema, start, n int) *Fixture {
	return &Fixture{Schema: s, Target: s, Class: ClassValid, Header: true, Rows: g.rows(s, start, n)}
}

// Batch returns count valid fixtures with disjoint identifier ranges.
func (g *Generator) Batch(s Schema, count, rowsEach int) []*Fixture {
	out := make([]*Fixture, 0, count)
	for k := 0; k < count; k++ {
		out = append(out, g.ValidFrom(s, k*rowsEach+1, rowsEach))
	}
	return out
}

// Empty returns a fixture with no data rows, with or without the header.
func (g *Generator) Empty(s Schema, withHeader bool) *Fixture {
	class := ClassEmptyHeaderOnly
	if !withHeader {
		class = ClassEmptyNoHeader
	}
	return &Fixture{Schema: s, Target: s, Class: class, Header: withHeader}
}

// WrongSchema returns a fixture uploaded as target whose header does not
// match it. Rows still match the header that is written.
func (g *Generator) WrongSchema(target Schema, variant WrongVariant) *Fixture {
	switch variant {
	case MissingColumns:
		keep := 2
		if keep > target.Arity() {
			keep = target.Arity()
		}
		s := Schema{Name: target.Name + "-missing", Columns: append([]string(nil), target.Columns[:keep]...)}
		return &Fixture{Schema: s, Target: target, Class: ClassMissingColumns, Header: true, Rows: g.rows(s, 1, 2)}
	case ExtraColumns:
		s := Schema{Name: target.Name + "-extra", Columns: append(append([]string(nil), target.Columns...), "extra1", "extra2")}
		return &Fixture{Schema: s, Target: target, Class: ClassExtraColumns, Header: true, Rows: g.rows(s, 1, 2)}
	default:
		s := Schema{Name: "wrong", Columns: []string{"wrong_header1", "wrong_header2"}}
		return &Fixture{
			Schema: s, Target: target, Class: ClassWrongHeaders, Header: true,
			Rows: [][]string{{"value1", "value2"}},
		}
	}
}

// OversizedRows returns a valid fixture with n rows, the row-count axis.
func (g *Generator) OversizedRows(s Schema, n int) *Fixture {
	f := g.Valid(s, n)
	f.Class = ClassOversizedRows
	return f
}

// OversizedField returns a single row whose first free-text field is
// length characters long, the field-length axis.
func (g *Generator) OversizedField(s Schema, length int) (*Fixture, error) {
	if length < 0 {
		return nil, fmt.Errorf("field length must not be negative, got %d", length)
	}
	cols := s.textColumns()
	if len(cols) == 0 {
		return nil, fmt.Errorf("schema %s has no text column", s.Name)
	}
	row := g.row(s, 1)
	row[cols[0]] = strings.Repeat("A", length)
	return &Fixture{Schema: s, Target: s, Class: ClassOversizedField, Header: true, Rows: [][]string{row}}, nil
}

// UnicodeStress returns one row per entry of UnicodeNames.
func (g *Generator) UnicodeStress(s Schema) (*Fixture, error) {
	first, last := s.Index("first_name"), s.Index("last_name")
	name := s.Index("name")
	if name < 0 {
		name = s.Index("item_name")
	}
	if (first < 0 || last < 0) && name < 0 {
		return nil, fmt.Errorf("schema %s has no name column", s.Name)
	}

	rows := make([][]string, 0, len(UnicodeNames))
	for i, pair := range UnicodeNames {
		row := g.row(s, i+1)
		if first >= 0 && last >= 0 {
			row[first], row[last] = pair[0], pair[1]
		} else {
			row[name] = pair[0] + " " + pair[1]
		}
		rows = append(rows, row)
	}
	return &Fixture{Schema: s, Target: s, Class: ClassUnicodeStress, Header: true, Rows: rows}, nil
}

// BoundaryDates returns one row per entry of BoundaryDates. Schemas with
// a time column get the paired time as well.
func (g *Generator) BoundaryDates(s Schema) (*Fixture, error) {
	dc := s.dateColumn()
	if dc < 0 {
		return nil, fmt.Errorf("schema %s has no date column", s.Name)
	}
	tc := s.timeColumn()

	rows := make([][]string, 0, len(BoundaryDates))
	for i, pair := range BoundaryDates {
		row := g.row(s, i+1)
		row[dc] = pair[0]
		if tc >= 0 {
			row[tc] = pair[1]
		}
		rows = append(rows, row)
	}
	return &Fixture{Schema: s, Target: s, Class: ClassBoundaryDates, Header: true, Rows: rows}, nil
}

// BoundaryPhones returns one row per entry of PhoneFormats.
func (g *Generator) BoundaryPhones(s Schema) (*Fixture, error) {
	pc := s.phoneColumn()
	if pc < 0 {
		return nil, fmt.Errorf("schema %s has no phone column", s.Name)
	}

	rows := make([][]string, 0, len(PhoneFormats))
	for i, phone := range PhoneFormats {
		row := g.row(s, i+1)
		row[pc] = phone
		rows = append(rows, row)
	}
	return &Fixture{Schema: s, Target: s, Class: ClassBoundaryPhones, Header: true, Rows: rows}, nil
}

// Injection returns one row per payload, with the payload placed verbatim
// in every free-text column.
func (g *Generator) Injection(s Schema, class Classification, payloads []string) (*Fixture, error) {
	cols := s.textColumns()
	if len(cols) == 0 {
		return nil, fmt.Errorf("schema %s has no text column", s.Name)
	}
	switch class {
	case ClassInjectionSQL, ClassInjectionMarkup, ClassInjectionCommand:
	default:
		return nil, fmt.Errorf("%s is not an injection classification", class)
	}

	rows := make([][]string, 0, len(payloads))
	for i, p := range payloads {
		row := g.row(s, i+1)
		for _, c := range cols {
			row[c] = p
		}
		rows = append(rows, row)
	}
	return &Fixture{Schema: s, Target: s, Class: class, Header: true, Rows: rows}, nil
}

// SQLInjection is Injection with SQLPayloads.
func (g *Generator) SQLInjection(s Schema) (*Fixture, error) {
	return g.Injection(s, ClassInjectionSQL, SQLPayloads)
}

// MarkupInjection is Injection with MarkupPayloads.
func (g *Generator) MarkupInjection(s Schema) (*Fixture, error) {
	return g.Injection(s, ClassInjectionMarkup, MarkupPayloads)
}

// Ragged returns rows that are deliberately one column short and one
// column long, next to a conforming row. It is the only generator that
// breaks the header arity.
func (g *Generator) Ragged(s Schema) *Fixture {
	ok := g.row(s, 1)
	short := g.row(s, 2)
	short = short[:len(short)-1]
	long := append(g.row(s, 3), "unexpected")
	return &Fixture{Schema: s, Target: s, Class: ClassRagged, Header: true, Rows: [][]string{ok, short, long}}
}

// Duplicates returns n rows that all share the first row's primary key.
func (g *Generator) Duplicates(s Schema, n int) *Fixture {
	if n < 2 {
		n = 2
	}
	rows := g.rows(s, 1, n)
	for _, row := range rows[1:] {
		row[0] = rows[0][0]
	}
	return &Fixture{Schema: s, Target: s, Class: ClassDuplicateKeys, Header: true, Rows: rows}
}

// Generate builds a fixture by classification name, the way the CLI asks
// for one. rows is used by the row-count driven classes.
func (g *Generator) Generate(class Classification, s Schema, rows int) (*Fixture, error) {
	if rows < 0 {
		return nil, fmt.Errorf("%s: size must not be negative, got %d", class, rows)
	}
	switch class {
	case ClassValid:
		return g.Valid(s, rows), nil
	case ClassWrongHeaders:
		return g.WrongSchema(s, WrongHeaders), nil
	case ClassMissingColumns:
		return g.WrongSchema(s, MissingColumns), nil
	case ClassExtraColumns:
		return g.WrongSchema(s, ExtraColumns), nil
	case ClassEmptyHeaderOnly:
		return g.Empty(s, true), nil
	case ClassEmptyNoHeader:
		return g.Empty(s, false), nil
	case ClassOversizedRows:
		return g.OversizedRows(s, rows), nil
	case ClassOversizedField:
		return g.OversizedField(s, rows)
	case ClassUnicodeStress:
		return g.UnicodeStress(s)
	case ClassBoundaryDates:
		return g.BoundaryDates(s)
	case ClassBoundaryPhones:
		return g.BoundaryPhones(s)
	case ClassInjectionSQL:
		return g.SQLInjection(s)
	case ClassInjectionMarkup:
		return g.MarkupInjection(s)
	case ClassInjectionCommand:
		return g.Injection(s, ClassInjectionCommand, CommandPayloads)
	case ClassRagged:
		return g.Ragged(s), nil
	case ClassDuplicateKeys:
		return g.Duplicates(s, rows), nil
	}
	return nil, fmt.Errorf("unknown fixture classification %q", class)
}

// DefaultSize is the size Generate is given for class when the caller has
// no preference: the row count, or the field length for oversized-field.
func DefaultSize(class Classification) int {
	switch class {
	case ClassOversizedRows:
		return 1500
	case ClassOversizedField:
		return 15000
	case ClassDuplicateKeys:
		return 5
	}
	return 10
}

// Classifications lists every classification Generate accepts.
func Classifications() []Classification {
	return []Classification{
		ClassValid, ClassWrongHeaders, ClassMissingColumns, ClassExtraColumns,
		ClassEmptyHeaderOnly, ClassEmptyNoHeader, ClassOversizedRows, ClassOversizedField,
		ClassUnicodeStress, ClassBoundaryDates, ClassBoundaryPhones,
		ClassInjectionSQL, ClassInjectionMarkup, ClassInjectionCommand,
		ClassRagged, ClassDuplicateKeys,
	}
}
