package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/questkeep/questkeep/internal/models"
)

// Output handles formatting output based on the configured format
type Output struct {
	format string
	w      io.Writer
}

// NewOutput creates a new Output formatter
func NewOutput(format string, w io.Writer) *Output {
	return &Output{format: format, w: w}
}

// PinStatusResult is printed by `pin status`
type PinStatusResult struct {
	UserID string `json:"user_id"`
	models.PinStatus
}

// HashResult is printed by `pin hash`
type HashResult struct {
	Algorithm string `json:"hash_algorithm"`
	Salt      string `json:"salt"`
	PINHash   string `json:"pin_hash"`
}

// CheckResult is printed by `castle check`
type CheckResult struct {
	Allowed bool   `json:"allowed"`
	Reason  string `json:"reason,omitempty"`
}

// Print outputs data in the configured format
func (o *Output) Print(data any) {
	if o.format == "json" {
		o.printJSON(data)
		return
	}

	switch v := data.(type) {
	case PinStatusResult:
		o.printPinStatus(v)
	case HashResult:
		fmt.Fprintf(o.w, "Algorithm: %s\nSalt: %s\nHash: %s\n", v.Algorithm, v.Salt, v.PINHash)
	case []models.BuildingType:
		o.printCatalog(v)
	case []models.PlacedBuilding:
		o.printLayout(v)
	case CheckResult:
		if v.Allowed {
			fmt.Fprintln(o.w, "Allowed")
		} else {
			fmt.Fprintf(o.w, "Rejected: %s\n", v.Reason)
		}
	default:
		// Fallback to JSON for unknown types
		o.printJSON(data)
	}
}

// PrintMessage outputs a simple message
func (o *Output) PrintMessage(msg string) {
	if o.format == "json" {
		o.printJSON(map[string]string{"message": msg})
		return
	}
	fmt.Fprintln(o.w, msg)
}

func (o *Output) printJSON(data any) {
	enc := json.NewEncoder(o.w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(data)
}

func (o *Output) printPinStatus(s PinStatusResult) {
	fmt.Fprintf(o.w, "User: %s\n", s.UserID)
	if s.Blocked {
		fmt.Fprintf(o.w, "Status: locked (%ds remaining)\n", s.RemainingSeconds)
		return
	}
	fmt.Fprintf(o.w, "Status: open (%d attempts remaining)\n", s.AttemptsRemaining)
}

func (o *Output) printCatalog(types []models.BuildingType) {
	fmt.Fprintf(o.w, "Buildings (%d):\n", len(types))
	for _, bt := range types {
		fmt.Fprintf(o.w, "  %-10s %dx%d  cost %d  %s\n", bt.ID, bt.Width, bt.Height, bt.Cost, bt.Name)
	}
}

func (o *Output) printLayout(placed []models.PlacedBuilding) {
	fmt.Fprintf(o.w, "Buildings (%d):\n", len(placed))
	for _, pb := range placed {
		fmt.Fprintf(o.w, "  %s  %-10s at (%d,%d)  level %d\n", pb.ID, pb.BuildingTypeID, pb.X, pb.Y, pb.Level)
	}
}
