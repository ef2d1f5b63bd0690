package plmxs

import (
	"runtime"
	"time"

	"yogavision/log"
	"yogavision/util/timer"

	"github.com/shirou/gopsutil/cpu"
	"github.com/shirou/gopsutil/disk"
	"github.com/shirou/gopsutil/mem"
	"go.uber.org/zap"
)

const (
	nb1024 = 1024
	nb6    = 6
)

// StartSystem refreshes the host gauges every ten seconds until Close.
func (s *PrometheusMonitor) StartSystem() {
	if s == nil {
		return
	}

	s.getSys()

	t := timer.NewTicker(time.Minute/nb6, func() {
		s.getSys()
		s.refreshRequestsGauge()
	})

	s.Lock()
	s.stop = t.Stop
	s.Unlock()
}

func (s *PrometheusMonitor) Close() {
	if s == nil {
		return
	}

	s.Lock()
	stop := s.stop
	s.stop = nil
	s.Unlock()

	if stop != nil {
		stop()
	}
}

func (s *PrometheusMonitor) getSys() {
	m := &runtime.MemStats{}
	runtime.ReadMemStats(m)

	s.MemoryUseGauge.With(s.label()).Set(float64(m.Sys) / float64(nb1024*nb1024))

	if v, ok := GetMemPercent(); ok {
		s.MemoryPercent.With(s.label()).Set(v)
	}

	if v, ok := GetCPUPercent(); ok {
		s.CPUPercent.With(s.label()).Set(v)
	}

	if v, ok := GetDiskPercent(); ok {
		s.DiskPercent.With(s.label()).Set(v)
	}
}

// GetCPUPercent reports usage since the previous call without sleeping.
func GetCPUPercent() (float64, bool) {
	percent, err := cpu.Percent(0, false)
	if err != nil || len(percent) == 0 {
		log.Debug("CPUPercent", zap.Error(err))

		return 0, false
	}

	return percent[0], true
}

func GetMemPercent() (float64, bool) {
	memInfo, err := mem.VirtualMemory()
	if err != nil {
		log.Debug("MemPercent", zap.Error(err))

		return 0, false
	}

	return memInfo.UsedPercent, true
}

func GetDiskPercent() (float64, bool) {
	parts, err := disk.Partitions(false)
	if err != nil || len(parts) == 0 {
		return 0, false
	}

	diskInfo, err := disk.Usage(parts[0].Mountpoint)
	if err != nil {
		return 0, false
	}

	return diskInfo.UsedPercent, true
}

func (s *PrometheusMonitor) refreshRequestsGauge() {
	s.Lock()
	defer s.Unlock()

	for k, v := range s.handlerRequestsNum {
		s.APIRequestsGauge.With(map[string]string{"handler": k, "micro_name": s.ServiceName}).Set(v)
		s.handlerRequestsNum[k] = 0
	}
}
