// Package renderer holds the active device-resident scene on behalf of a
// frame loop. Frame recording itself lives with the caller.
package renderer

import (
	halarenderer "github.com/zhing2006/hala-renderer"
	"github.com/zhing2006/hala-renderer/gfx"
	"github.com/zhing2006/hala-renderer/scene"
	"github.com/zhing2006/hala-renderer/scene/gpu"
)

// Config selects the optional upload paths.
type Config struct {
	UseForMeshShader bool
	UseForRayTracing bool
}

// Renderer owns at most one gpu.Scene at a time.
type Renderer struct {
	device       gfx.Device
	graphicsCmds gfx.CommandBuffers
	transferCmds gfx.CommandBuffers
	config       Config
	logger       halarenderer.Logger

	scene *gpu.Scene
}

func New(device gfx.Device, graphicsCmds, transferCmds gfx.CommandBuffers, config Config, logger halarenderer.Logger) *Renderer {
	if logger == nil {
		logger = halarenderer.NewNopLogger()
	}
	return &Renderer{
		device:       device,
		graphicsCmds: graphicsCmds,
		transferCmds: transferCmds,
		config:       config,
		logger:       logger,
	}
}

// Scene returns the active device scene, or nil when none is loaded.
func (r *Renderer) Scene() *gpu.Scene { return r.scene }

// SetScene uploads sceneInCPU and installs the result. The new scene is
// built first and swapped in only on success, so a failed upload keeps the
// previous scene intact. The replaced scene is destroyed after the swap.
func (r *Renderer) SetScene(sceneInCPU *scene.Scene) error {
	next, err := gpu.Upload(
		r.device,
		r.graphicsCmds,
		r.transferCmds,
		sceneInCPU,
		r.config.UseForMeshShader,
		r.config.UseForRayTracing,
		r.logger)
	if err != nil {
		r.logger.Errorf("Set scene failed: %v.", err)
		return err
	}

	old := r.scene
	r.scene = next
	if old != nil {
		old.Destroy()
	}
	return nil
}

// Destroy releases the active scene, if any.
func (r *Renderer) Destroy() {
	if r.scene != nil {
		r.scene.Destroy()
		r.scene = nil
	}
}
