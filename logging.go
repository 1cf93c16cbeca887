package mp4seek

import (
	"go.uber.org/zap"

	"github.com/arkadini/mp4seek/internal/log"
)

// pkgLogger is the side-channel diagnostic logger for Split and
// MoveHeaderAndWrite. It never affects their return values or errors;
// it exists so a caller can observe, per track, the cut sample/chunk
// chosen and how far that lands from the requested time, mirroring the
// per-track cut reports a production cutter would print, through a
// structured logger instead of fmt.Printf.
var pkgLogger = log.Nop()

// SetLogger installs the logger Split/MoveHeaderAndWrite use for
// diagnostics. Passing nil restores the no-op default.
func SetLogger(l *zap.Logger) {
	if l == nil {
		l = log.Nop()
	}
	pkgLogger = l
}

// logTrackCut reports the sample/chunk a track was cut at and how far
// that lands (in milliseconds) from the time the caller requested.
func logTrackCut(trackID uint32, ci cutInfo, requestedSeconds, actualSeconds float64) {
	deltaMs := (actualSeconds - requestedSeconds) * 1000.0
	pkgLogger.Info("cut track",
		zap.Uint32("track_id", trackID),
		zap.Uint64("sample", ci.sample),
		zap.Uint32("chunk", ci.chunk),
		zap.Float64("requested_seconds", requestedSeconds),
		zap.Float64("delta_ms", deltaMs),
	)
}

func logFastStart(moved bool, trackCount int) {
	pkgLogger.Info("fast-start",
		zap.Bool("moved", moved),
		zap.Int("tracks", trackCount),
	)
}
