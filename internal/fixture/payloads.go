package fixture

// SQLPayloads are literal SQL injection strings. Fixtures embed them
// verbatim; they must reach the server unmodified.
var SQLPayloads = []string{
	"'; DROP TABLE patients; --",
	"1' OR '1'='1",
	"admin'--",
	"' UNION SELECT * FROM users--",
	"1; DELETE FROM appointments WHERE 1=1--",
}

// MarkupPayloads are literal markup and script injection strings. A page
// that renders any of them unescaped opens a dialog.
var MarkupPayloads = []string{
	`<script>alert("XSS")</script>`,
	`<img src=x onerror=alert("XSS")>`,
	`javascript:alert("XSS")`,
	`<svg onload=alert("XSS")>`,
	`<iframe src="javascript:alert('XSS')"></iframe>`,
}

// CommandPayloads are shell metacharacter strings typed into text inputs.
var CommandPayloads = []string{
	"; ls -la",
	"| cat /etc/passwd",
	"`rm -rf /`",
	"$(whoami)",
	"& net user",
}

// UnicodeNames are first/last name pairs spanning Latin diacritics, CJK,
// right-to-left scripts and emoji, including a skin-tone ZWJ sequence.
var UnicodeNames = [][2]string{
	{"José", "García"},
	{"François", "Müller"},
	{"李明", "王"},
	{"محمد", "أحمد"},
	{"Naledi 🌍", "Mosweu 👩🏾‍⚕️"},
}

// BoundaryDates are date/time pairs at calendar extremes, including a leap
// day and the last minute of a century.
var BoundaryDates = [][2]string{
	{"1900-01-01", "09:00"},
	{"2100-12-31", "23:59"},
	{"2024-02-29", "12:00"},
	{"2024-12-31", "00:00"},
}

// PhoneFormats are the same Botswana mobile number written in every format
// people actually type.
var PhoneFormats = []string{
	"+26770000001",
	"26770000002",
	"70000003",
	"+267-7000-0004",
	"(267) 7000-0005",
	"267.7000.0006",
}
