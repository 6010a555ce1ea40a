package detect

import (
	"github.com/entrhq/kidguard/pkg/browser"
	"github.com/entrhq/kidguard/pkg/config"
	"github.com/entrhq/kidguard/pkg/logging"
)

// Options carries the OS facilities FromConfig wires into strategies.
// Nil listers use the system implementations.
type Options struct {
	Titles    TitleLister
	Processes ProcessLister
	Pages     browser.PageSource
}

// FromConfig builds the detector in fixed priority order: window titles,
// processes, then DOM. Strategies whose facility is unavailable are left
// out once here rather than failing on every poll.
func FromConfig(cfg config.DetectionConfig, opts Options, logger *logging.Logger) (*Detector, error) {
	if logger == nil {
		logger = logging.Discard()
	}

	var strategies []Strategy

	if cfg.WindowTitles {
		titles := opts.Titles
		if titles == nil {
			if err := WmctrlAvailable(); err != nil {
				logger.Warnf("window title detection disabled: %v", err)
			} else {
				titles = WmctrlTitles
			}
		}
		if titles != nil {
			strategies = append(strategies, NewWindowTitleStrategy(titles, cfg.TargetMarker, cfg.TitleSuffixes))
		}
	}

	if cfg.Processes {
		processes := opts.Processes
		if processes == nil {
			processes = SystemProcesses
		}
		s, err := NewProcessStrategy(processes, cfg.HostProcesses)
		if err != nil {
			return nil, err
		}
		strategies = append(strategies, s)
	}

	if cfg.CDP.Enabled {
		if opts.Pages == nil {
			logger.Warnf("DOM detection disabled: no browser connection")
		} else {
			s, err := NewDOMStrategy(opts.Pages, cfg.CDP.WatchURLPattern)
			if err != nil {
				return nil, err
			}
			strategies = append(strategies, s)
		}
	}

	if len(strategies) == 0 {
		logger.Warnf("no presence detection strategies available")
	}

	return New(cfg.Timeout(), logger, strategies...), nil
}
