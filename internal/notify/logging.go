package notify

import (
	"context"
	"log/slog"
)

// LogDispatcher writes introductions to the log instead of delivering them.
// It backs dev mode, where no broker is configured.
type LogDispatcher struct {
	logger *slog.Logger
}

func NewLogDispatcher(logger *slog.Logger) *LogDispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogDispatcher{logger: logger}
}

func (d *LogDispatcher) SendIntroduction(ctx context.Context, intro Introduction) error {
	d.logger.InfoContext(ctx, "introduction dispatched",
		"mode", "log",
		"group_id", intro.GroupID.String(),
		"group_name", intro.GroupName,
		"user_id", intro.UserID.String(),
		"email", intro.Email,
		"member_count", intro.MemberCount,
	)
	return nil
}
