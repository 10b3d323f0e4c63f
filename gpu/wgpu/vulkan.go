//go:build !js && !nogpu

package wgpu

// Vulkan is the only hal backend New opens. Builds for js/wasm or with the
// nogpu tag leave it unregistered and the backend reports unavailable.
import _ "github.com/gogpu/wgpu/hal/vulkan"
