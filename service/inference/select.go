package inference

import (
	"log/slog"

	"github.com/khaledhikmat/aicam-go/service/lgr"
	"golang.org/x/xerrors"
)

var ErrNoBackend = xerrors.New("no detector backend could be loaded")

// noBackendError matches ErrNoBackend and unwraps to the last backend failure.
type noBackendError struct {
	last error
}

func (e noBackendError) Error() string {
	return ErrNoBackend.Error() + ": " + e.last.Error()
}

func (e noBackendError) Is(target error) bool {
	return target == ErrNoBackend
}

func (e noBackendError) Unwrap() error {
	return e.last
}

// Select tries each factory in order and returns the first detector that
// loads. A failed backend is logged and never retried.
func Select(factories ...Factory) (IService, error) {
	var lastErr error
	for _, f := range factories {
		svc, err := f.New()
		if err == nil {
			lgr.Logger.Info("detector backend selected",
				slog.String("backend", f.Name),
			)
			return svc, nil
		}

		lgr.Logger.Warn("detector backend unavailable",
			slog.String("backend", f.Name),
			slog.Any("error", err),
		)
		lastErr = err
	}

	if lastErr == nil {
		return nil, ErrNoBackend
	}
	return nil, xerrors.Errorf("selecting detector: %w", noBackendError{last: lastErr})
}
