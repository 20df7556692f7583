package supervisor

import (
	"github.com/sylabs/starter/internal/cgroupmgr"
	"github.com/sylabs/starter/internal/eventloop"
	"github.com/sylabs/starter/internal/netsetup"
	"github.com/sylabs/starter/internal/notifychan"
	"github.com/sylabs/starter/internal/starterlog"
)

// notifyHandler implements spec.md §4.H: the notify channel's read end as
// an event source.
type notifyHandler struct {
	channel *notifychan.Channel
	monitor *Monitor

	// NetConfig, if set by the dispatcher before the loop starts, is used
	// to answer SET_NETNS by invoking the real network helper instead of
	// just acking the handshake.
	NetConfig *netsetup.Config
	// CgroupMgr, if set, is deleted by the best-effort cleanup hook
	// registered after the SET_CGROUP handshake ACK (SPEC_FULL.md §4.H;
	// spec.md §9 Open Question: the wire-level handshake itself carries
	// no payload either way).
	CgroupMgr *cgroupmgr.Manager
}

func (n *notifyHandler) onReady(sandboxPID int) eventloop.Code {
	msg, err := n.channel.Recv()
	if err != nil {
		starterlog.G().WithError(err).Warn("notify channel recv failed")
		return eventloop.Discard
	}

	switch msg {
	case notifychan.MsgSetNetNS:
		if n.NetConfig != nil {
			n.NetConfig.PID = sandboxPID
			if err := netsetup.Setup(*n.NetConfig); err != nil {
				starterlog.G().WithError(err).Error("network setup failed")
				n.reply(notifychan.MsgError)
				return eventloop.Failed(0)
			}
			n.monitor.EventReg.Register(&eventloop.Source{
				Name: "network-cleanup",
				FD:   -1,
				OnExit: func() error {
					return netsetup.Cleanup(*n.NetConfig)
				},
			})
		}
		n.reply(notifychan.MsgOK)
		return eventloop.Notified(int(notifychan.MsgSetNetNS))

	case notifychan.MsgSetCgroup:
		n.reply(notifychan.MsgOK)
		if n.CgroupMgr != nil {
			n.monitor.EventReg.Register(&eventloop.Source{
				Name:   "cgroup-cleanup",
				FD:     -1,
				OnExit: n.CgroupMgr.Delete,
			})
		}
		return eventloop.Notified(int(notifychan.MsgSetCgroup))

	case notifychan.MsgDetach:
		if n.monitor.OnDetach != nil {
			n.monitor.OnDetach()
		}
		return eventloop.Notified(int(notifychan.MsgDetach))

	default:
		return eventloop.Notified(int(msg))
	}
}

func (n *notifyHandler) reply(msg notifychan.Message) {
	if err := n.channel.Send(msg); err != nil {
		starterlog.G().WithError(err).Warn("notify channel reply failed")
	}
}
