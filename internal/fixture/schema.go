package fixture

import "strings"

// Schema is an ordered list of CSV column names.
type Schema struct {
	Name    string   `json:"name"`
	Columns []string `json:"columns"`
}

// Arity is the number of columns every conforming row has.
func (s Schema) Arity() int { return len(s.Columns) }

// Index returns the position of column, or -1.
func (s Schema) Index(column string) int {
	for i, c := range s.Columns {
		if c == column {
			return i
		}
	}
	return -1
}

// find returns the first column index whose name satisfies match.
func (s Schema) find(match func(string) bool) int {
	for i, c := range s.Columns {
		if match(c) {
			return i
		}
	}
	return -1
}

func (s Schema) phoneColumn() int {
	return s.find(func(c string) bool { return c == "phone" || c == "phone_e164" })
}

func (s Schema) dateColumn() int {
	return s.find(func(c string) bool { return c == "dob" || strings.HasSuffix(c, "_date") })
}

func (s Schema) timeColumn() int {
	return s.find(func(c string) bool { return strings.HasSuffix(c, "_time") })
}

// textColumns are the free-text columns a person would type names into.
func (s Schema) textColumns() []int {
	var out []int
	for i, c := range s.Columns {
		switch c {
		case "name", "first_name", "last_name", "item_name":
			out = append(out, i)
		}
	}
	return out
}

// ClinicLite upload schemas.
var (
	Clinics = Schema{
		Name:    "clinics",
		Columns: []string{"clinic_id", "name", "district", "phone", "email"},
	}
	Patients = Schema{
		Name:    "patients",
		Columns: []string{"patient_id", "first_name", "last_name", "dob", "phone_e164", "preferred_lang"},
	}
	Appointments = Schema{
		Name:    "appointments",
		Columns: []string{"appointment_id", "patient_id", "clinic_id", "next_visit_date", "visit_type"},
	}
	Stock = Schema{
		Name:    "stock",
		Columns: []string{"stock_id", "clinic_id", "item_name", "on_hand_qty", "reorder_level", "unit"},
	}

	// PatientContacts and AppointmentSlots are the narrower layouts used by
	// the edge-case upload checks.
	PatientContacts = Schema{
		Name:    "patient-contacts",
		Columns: []string{"patient_id", "first_name", "last_name", "phone", "language"},
	}
	AppointmentSlots = Schema{
		Name:    "appointment-slots",
		Columns: []string{"appointment_id", "patient_id", "clinic_id", "appointment_date", "appointment_time"},
	}
)

// Schemas lists every known schema.
func Schemas() []Schema {
	return []Schema{Clinics, Patients, Appointments, Stock, PatientContacts, AppointmentSlots}
}

// SchemaByName looks a schema up by name.
func SchemaByName(name string) (Schema, bool) {
	for _, s := range Schemas() {
		if s.Name == name {
			return s, true
		}
	}
	return Schema{}, false
}

// UploadType maps a schema to the value of the upload type selector.
func (s Schema) UploadType() string {
	switch s.Name {
	case PatientContacts.Name:
		return Patients.Name
	case AppointmentSlots.Name:
		return Appointments.Name
	}
	return s.Name
}
