package session

import (
	"fmt"
	"time"

	"github.com/RecoveryAshes/CatalogHarvest/internal/utils"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

const mb = 1024 * 1024

// ResourceStatus 启动浏览器前的系统资源快照
type ResourceStatus struct {
	TotalMemory     uint64  // 系统总内存(字节)
	AvailableMemory uint64  // 可用内存(字节)
	CPUPercent      float64 // 所有核心平均使用率
	MemoryPressure  string  // 内存压力等级
}

// AvailableMB 可用内存(MB)
func (s ResourceStatus) AvailableMB() uint64 {
	return s.AvailableMemory / mb
}

// Check 判断资源是否足以启动浏览器
// minFreeMB为0时不做限制
func (s ResourceStatus) Check(minFreeMB uint64) error {
	if minFreeMB == 0 {
		return nil
	}
	if s.AvailableMB() < minFreeMB {
		return fmt.Errorf("可用内存不足: %dMB < %dMB", s.AvailableMB(), minFreeMB)
	}
	return nil
}

// SampleResources 采样系统内存和CPU
// CPU采样失败只记录警告, 内存采样失败返回错误
func SampleResources() (ResourceStatus, error) {
	vmStat, err := mem.VirtualMemory()
	if err != nil {
		return ResourceStatus{}, fmt.Errorf("获取系统内存失败: %w", err)
	}

	status := ResourceStatus{
		TotalMemory:     vmStat.Total,
		AvailableMemory: vmStat.Available,
	}
	status.MemoryPressure = pressureLevel(status.AvailableMemory, status.TotalMemory)

	// 100毫秒采样间隔, perCPU=false 返回平均值
	percentages, err := cpu.Percent(100*time.Millisecond, false)
	if err != nil {
		utils.Warnf("获取CPU使用率失败: %v", err)
	} else if len(percentages) > 0 {
		status.CPUPercent = percentages[0]
	}

	return status, nil
}

// pressureLevel 按可用内存占比划分压力等级
func pressureLevel(available, total uint64) string {
	if total == 0 {
		return "unknown"
	}
	ratio := float64(available) / float64(total)
	switch {
	case ratio < 0.1:
		return "critical"
	case ratio < 0.25:
		return "high"
	case ratio < 0.5:
		return "medium"
	default:
		return "low"
	}
}
