package service

import (
	"context"

	"admin-service/internal/model"
	"admin-service/internal/util"
)

// LogNotifier is the default Notifier: soft notices land in the service log.
// HTTP handlers additionally surface them in the response body.
type LogNotifier struct{}

var _ model.Notifier = (*LogNotifier)(nil)

func (n *LogNotifier) Notice(_ context.Context, severity model.NoticeSeverity, message string) {
	switch severity {
	case model.SeverityWarning:
		util.Warn("notice", util.String("message", message))
	default:
		util.Info("notice", util.String("message", message))
	}
}
