// SPDX-FileCopyrightText: Copyright 2025 Authkeel Authors
// SPDX-License-Identifier: Apache-2.0

package server

import (
	"context"

	"github.com/authkeel/authkeel/pkg/endsession"
	"github.com/authkeel/authkeel/pkg/oidc"
	"github.com/authkeel/authkeel/pkg/telemetry"
)

// instrumentedNotifier counts logout notification outcomes around the real
// notifier.
type instrumentedNotifier struct {
	next    endsession.LogoutNotifier
	metrics *telemetry.Metrics
}

func newInstrumentedNotifier(next endsession.LogoutNotifier, metrics *telemetry.Metrics) endsession.LogoutNotifier {
	if metrics == nil {
		return next
	}
	return &instrumentedNotifier{next: next, metrics: metrics}
}

func (n *instrumentedNotifier) NotifyClient(ctx context.Context, client *oidc.ClientInfo, logout *oidc.LogoutContext) (string, error) {
	frontChannelURI, err := n.next.NotifyClient(ctx, client, logout)
	if client.BackChannelLogout != nil {
		outcome := telemetry.OutcomeSuccess
		if err != nil {
			outcome = telemetry.OutcomeFailure
		}
		n.metrics.LogoutNotifications.WithLabelValues(outcome).Inc()
	}
	return frontChannelURI, err
}
