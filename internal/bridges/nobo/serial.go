package nobo

// serialNumberLength is the number of digits in a well-formed serial.
const serialNumberLength = 12

// unknownType is returned by TypeIdentifier for malformed serials.
const unknownType = "Unknown"

// componentTypes maps the first three serial digits to a product name.
var componentTypes = map[string]string{
	"120": "RS 700",
	"121": "RSX 700",
	"130": "RCE 700",
	"160": "Nobø Front Panel",
	"165": "Nobø Front Panel",
	"168": "NCU-2R",
	"169": "DCU-2R",
	"170": "Nobø Front Panel",
	"180": "2NC9 700",
	"182": "R80 RSX 700",
	"183": "R80 RXC 700",
	"184": "NCU-1R",
	"186": "NTD-4R/DCU-1R",
	"192": "Nobø Switch",
	"194": "NCU-ER",
	"198": "NCU-ER",
	"199": "DCU-ER",
	"200": "TRB 36 700",
	"210": "NTB-2R",
	"220": "TR36",
	"230": "TCU 700",
	"231": "THB 700",
	"232": "TXB 700",
	"234": "Nobø Eco Switch",
}

// SerialNumber is the 12 digit serial of a hub or component.
//
// The zero value is not well-formed. SerialNumber is comparable and is
// used directly as the Register key for components.
type SerialNumber string

// IsWellFormed reports whether s is exactly 12 ASCII digits.
func (s SerialNumber) IsWellFormed() bool {
	return len(s) == serialNumberLength && isDigits(string(s))
}

// TypeIdentifier returns the three digit product prefix, or "Unknown"
// when the serial is not well-formed.
func (s SerialNumber) TypeIdentifier() string {
	if !s.IsWellFormed() {
		return unknownType
	}
	return string(s[:3])
}

// ComponentType returns the product name for the serial's type identifier.
// Unknown identifiers yield a placeholder that names the full raw serial.
func (s SerialNumber) ComponentType() string {
	if name, ok := componentTypes[s.TypeIdentifier()]; ok {
		return name
	}
	return "Unknown, please contact maintainer to add a new type for " + string(s)
}

// String returns the raw serial.
func (s SerialNumber) String() string {
	return string(s)
}
