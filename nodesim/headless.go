package main

import (
	"context"
	"errors"

	"github.com/itohio/wisnode/pkg/config"
	"github.com/itohio/wisnode/pkg/dutycycle"
	"github.com/itohio/wisnode/pkg/logging"
	"github.com/itohio/wisnode/pkg/node"
	"github.com/itohio/wisnode/pkg/radio/abp"
)

// runHeadless runs the node until ctx is cancelled, logging every cycle.
func runHeadless(ctx context.Context, cfg *config.Config, log *logging.Logger, opts ...node.Option) error {
	n, err := node.New(cfg, log, opts...)
	if err != nil {
		return err
	}
	defer n.Close()

	n.Controller.OnCycle(func(r dutycycle.Report) {
		log.Infof("%s", describeReport(r))
		if r.Frame.Len() > 0 {
			log.Infof("  %s", describeFrame(r.Frame))
		}
	})
	if n.Air != nil {
		n.Air.OnUplink(func(f abp.AirFrame) {
			if f.Err != nil {
				log.Warnf("  air: fcnt %d rejected: %v", f.FCnt, f.Err)
				return
			}
			log.Debugf("  air: %s fcnt %d port %d %X", f.DevAddr, f.FCnt, f.Port, f.Payload)
		})
	}

	err = n.Run(ctx)
	if errors.Is(err, context.Canceled) {
		st := n.Controller.State()
		log.Infof("stopped: sent %d, failed %d, skipped %d", st.Sent, st.Failed, st.Skipped)
		return nil
	}
	return err
}
