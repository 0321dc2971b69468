package runtime

import (
	"context"
	"sort"

	"go.uber.org/zap"

	"github.com/wippyai/ffibridge/errors"
	"github.com/wippyai/ffibridge/native"
)

// symbolNamer is implemented by libraries that know their exported symbol
// names. Contract errors name the symbol when it is available.
type symbolNamer interface {
	Symbols() native.Symbols
}

// CheckContract verifies that the library was generated against the
// expected bridge contract version and function checksums. A zero version
// skips the version check. The first mismatch is returned as a
// contract_mismatch error.
func (r *Runtime) CheckContract(ctx context.Context, version uint32, checksums map[string]uint16) error {
	if version == 0 && len(checksums) == 0 {
		return nil
	}
	c, ok := r.lib.(native.Contract)
	if !ok {
		return errors.Unsupported(errors.PhaseLoad, "library does not report a contract")
	}
	var syms native.Symbols
	if n, ok := r.lib.(symbolNamer); ok {
		syms = n.Symbols()
	}

	if version != 0 {
		got, err := c.ContractVersion(ctx)
		if err != nil {
			return err
		}
		if got != version {
			return errors.ContractMismatch(symbolOr(syms, syms.ContractVersion, "contract_version"), uint64(version), uint64(got))
		}
	}

	names := make([]string, 0, len(checksums))
	for name := range checksums {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		got, err := c.Checksum(ctx, name)
		if err != nil {
			return err
		}
		if want := checksums[name]; got != want {
			return errors.ContractMismatch(symbolOr(syms, func() string { return syms.Checksum(name) }, name), uint64(want), uint64(got))
		}
	}

	r.logger.Debug("contract verified", zap.Uint32("version", version), zap.Int("checksums", len(names)))
	return nil
}

func symbolOr(syms native.Symbols, sym func() string, fallback string) string {
	if syms.Namespace == "" {
		return fallback
	}
	return sym()
}
