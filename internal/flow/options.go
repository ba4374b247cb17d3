package flow

import (
	"github.com/google/uuid"

	"github.com/toolgate/toolgate/pkg/types"
)

// DefaultOptions builds the standard four-option confirmation set. IDs
// are unique per exchange; the set lives exactly one exchange.
func DefaultOptions() []types.PermissionOption {
	kinds := []types.OptionKind{
		types.OptionAllowOnce,
		types.OptionAllowAlways,
		types.OptionRejectOnce,
		types.OptionRejectAlways,
	}
	opts := make([]types.PermissionOption, 0, len(kinds))
	for _, k := range kinds {
		opts = append(opts, types.PermissionOption{ID: "opt-" + uuid.NewString(), Kind: k})
	}
	return opts
}

func findByKind(opts []types.PermissionOption, kind types.OptionKind) *types.PermissionOption {
	for i := range opts {
		if opts[i].Kind == kind {
			return &opts[i]
		}
	}
	return nil
}

func findByID(opts []types.PermissionOption, id string) *types.PermissionOption {
	if id == "" {
		return nil
	}
	for i := range opts {
		if opts[i].ID == id {
			return &opts[i]
		}
	}
	return nil
}
