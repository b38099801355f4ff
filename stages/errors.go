package stages

import "fmt"

// ToolError reports a record-store tool failure during aggregation. The
// NotRegistered flag separates "unknown patient" from transport failures;
// neither is the same as a registered patient with no history.
type ToolError struct {
	Op            string
	Err           error
	NotRegistered bool
}

func (e *ToolError) Error() string {
	if e.NotRegistered {
		return fmt.Sprintf("%s: patient is not registered: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *ToolError) Unwrap() error {
	return e.Err
}

// GenerationError reports that the generation capability itself failed or
// timed out before any output could be validated.
type GenerationError struct {
	Err error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("generation call failed: %v", e.Err)
}

func (e *GenerationError) Unwrap() error {
	return e.Err
}
