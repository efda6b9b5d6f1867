package gpu

import (
	"errors"
	"fmt"

	"github.com/cogentcore/webgpu/wgpu"
	"go.uber.org/zap"

	"github.com/Carmen-Shannon/oxy-surface/engine/logger"
)

// wgpuDriver implements Driver on WebGPU. A platform is one WebGPU backend (Vulkan, Metal, D3D12, GL)
// and its devices are the adapters that backend exposes.
type wgpuDriver struct {
	instance *wgpu.Instance
	log      *zap.Logger
	graphics *wgpuGraphics
}

var _ Driver = &wgpuDriver{}

// NewWGPUDriver creates the WebGPU instance backing a Driver. Must be called on the thread that owns the window.
//
// Parameters:
//   - log: logger for driver diagnostics, may be nil
//
// Returns:
//   - Driver: the WebGPU driver
func NewWGPUDriver(log *zap.Logger) Driver {
	return &wgpuDriver{
		instance: wgpu.CreateInstance(nil),
		log:      logger.OrNop(log).Named("wgpu"),
	}
}

func (d *wgpuDriver) CreateGraphicsContext(surface Surface, mode PresentMode) (GraphicsContext, error) {
	if surface == nil {
		return nil, errors.New("no window surface")
	}
	desc := surface.SurfaceDescriptor()
	if desc == nil {
		return nil, errors.New("window has no native surface descriptor")
	}
	s := d.instance.CreateSurface(desc)
	if s == nil {
		return nil, errors.New("failed to create surface")
	}
	d.graphics = &wgpuGraphics{
		log:         d.log,
		surface:     s,
		presentMode: toWGPUPresentMode(mode),
		width:       surface.Width(),
		height:      surface.Height(),
	}
	return d.graphics, nil
}

func (d *wgpuDriver) Platforms() ([]Platform, error) {
	adapters := d.instance.EnumerateAdapters(nil)

	var platforms []Platform
	index := map[wgpu.BackendType]int{}
	for _, a := range adapters {
		info := a.GetInfo()
		i, ok := index[info.BackendType]
		if !ok {
			i = len(platforms)
			index[info.BackendType] = i
			platforms = append(platforms, Platform{
				Name:    info.BackendType.String(),
				Vendor:  "wgpu-native",
				Version: info.DriverDescription,
			})
		}
		platforms[i].Devices = append(platforms[i].Devices, Device{
			Name:   info.Name,
			Vendor: info.VendorName,
			Driver: info.DriverDescription,
			Type:   toDeviceType(info.AdapterType),
			Handle: a,
		})
	}
	return platforms, nil
}

func (d *wgpuDriver) CreateContext(gc GraphicsContext, platform Platform, device Device) (ComputeContext, error) {
	g, ok := gc.(*wgpuGraphics)
	if !ok || g != d.graphics {
		return nil, errors.New("graphics context was not created by this driver")
	}
	adapter, ok := device.Handle.(*wgpu.Adapter)
	if !ok || adapter == nil {
		return nil, fmt.Errorf("device %q of platform %q has no adapter handle", device.Name, platform.Name)
	}

	dev, err := adapter.RequestDevice(&wgpu.DeviceDescriptor{
		Label: "Surface Device",
		RequiredLimits: &wgpu.RequiredLimits{
			Limits: wgpu.DefaultLimits(),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to request device on %s: %w", device.Name, err)
	}

	if err := g.link(adapter, dev, dev.GetQueue()); err != nil {
		dev.Release()
		return nil, err
	}
	return &wgpuCompute{graphics: g, log: d.log}, nil
}

func (d *wgpuDriver) Release() {
	if d.instance != nil {
		d.instance.Release()
		d.instance = nil
	}
}

func toDeviceType(t wgpu.AdapterType) DeviceType {
	switch t {
	case wgpu.AdapterTypeDiscreteGPU, wgpu.AdapterTypeIntegratedGPU:
		return DeviceTypeGPU
	case wgpu.AdapterTypeCPU:
		return DeviceTypeCPU
	default:
		return DeviceTypeUnknown
	}
}

func toWGPUPresentMode(mode PresentMode) wgpu.PresentMode {
	switch mode {
	case PresentModeFifo:
		return wgpu.PresentModeFifo
	case PresentModeMailbox:
		return wgpu.PresentModeMailbox
	default:
		return wgpu.PresentModeImmediate
	}
}
