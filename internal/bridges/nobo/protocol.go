package nobo

// Line prefixes sent by the hub. The reply to G00 opens with H00 and
// closes with H05.
const (
	PrefixSendingAll         = "H00"
	PrefixZone               = "H01"
	PrefixComponent          = "H02"
	PrefixWeekProfile        = "H03"
	PrefixOverride           = "H04"
	PrefixHubInfo            = "H05"
	PrefixZoneAdded          = "B00"
	PrefixComponentAdded     = "B01"
	PrefixWeekProfileAdded   = "B02"
	PrefixOverrideAdded      = "B03"
	PrefixZoneRemoved        = "S00"
	PrefixComponentRemoved   = "S01"
	PrefixWeekProfileRemoved = "S02"
	PrefixOverrideRemoved    = "S03"
	PrefixZoneUpdated        = "V00"
	PrefixComponentUpdated   = "V01"
	PrefixWeekProfileUpdated = "V02"
	PrefixHubUpdated         = "V03"
	PrefixTemperature        = "Y02"
	PrefixError              = "E00"
	PrefixHello              = "HELLO"
	PrefixHandshake          = "HANDSHAKE"
	PrefixKeepAlive          = "KEEPALIVE"
	PrefixReject             = "REJECT"
)

// Line prefixes sent to the hub.
const (
	PrefixGetAll            = "G00"
	PrefixUpdateZone        = "U00"
	PrefixUpdateComponent   = "U01"
	PrefixUpdateWeekProfile = "U02"
	PrefixUpdateHub         = "U03"
	PrefixAddOverride       = "A03"
)

// Protocol constants.
const (
	// DefaultPort is the TCP port the hub listens on.
	DefaultPort = 27779

	// DiscoveryPort is the UDP port the hub broadcasts on.
	DiscoveryPort = 10000

	// ProtocolVersion is the API version announced in HELLO.
	ProtocolVersion = "1.1"

	// helloTimeLayout is the yyyyMMddHHmmss stamp sent with HELLO.
	helloTimeLayout = "20060102150405"
)
