// Package nerdfonts holds the Nerd Font glyphs used in Waybar output and
// desktop notifications.
package nerdfonts

// Calendar
const (
	Calendar      = "\uF073" // 
	CalendarClock = "\uF64F" // 
	CalendarDay   = "\uF783" // 
)

// Time
const (
	Clock     = "\uF017" // 
	Hourglass = "\uF254" // 
	Timer     = "\uF2F2" // 
)

const (
	MapPin = "\uF041" // 
	Globe  = "\uF0AC" // 
)

// Status and notification symbols
const (
	InfoCircle          = "\uF05A" // 
	CheckCircle         = "\uF058" // 
	ExclamationCircle   = "\uF06A" // 
	ExclamationTriangle = "\uF071" // 
	Circle              = "\uF111" // 
	CircleDot           = "\uF192" // 
	Bell                = "\uF0F3" // 
)

// Roster
const (
	Users = "\uF0C0" // 
	// StatusActive and StatusIdle mark members in the dark theme.
	StatusActive = "\uF111" // 
	StatusIdle   = "\uF141" // 
)
