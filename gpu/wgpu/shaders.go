package wgpu

import (
	"fmt"
	"strings"

	"github.com/gogpu/naga"
)

// evolveShaderSource advances H0 to the time in params and writes the five
// frequency-domain fields. One invocation per cell.
const evolveShaderSource = `
struct Params {
    nx: u32,
    nz: u32,
    patch_x: f32,
    patch_z: f32,
    gravity: f32,
    time: f32,
    pad0: u32,
    pad1: u32,
}

@group(0) @binding(0) var<uniform> params: Params;
@group(0) @binding(1) var<storage, read> h0: array<vec2<f32>>;
@group(0) @binding(2) var<storage, read_write> height: array<vec2<f32>>;
@group(0) @binding(3) var<storage, read_write> disp_x: array<vec2<f32>>;
@group(0) @binding(4) var<storage, read_write> disp_z: array<vec2<f32>>;
@group(0) @binding(5) var<storage, read_write> grad_x: array<vec2<f32>>;
@group(0) @binding(6) var<storage, read_write> grad_z: array<vec2<f32>>;

const TWO_PI: f32 = 6.283185307179586;

@compute @workgroup_size(8, 8, 1)
fn main(@builtin(global_invocation_id) gid: vec3<u32>) {
    let x = gid.x;
    let z = gid.y;
    if (x >= params.nx || z >= params.nz) {
        return;
    }

    let idx = z * params.nx + x;
    let kx = (f32(x) - f32(params.nx) * 0.5) * (TWO_PI / params.patch_x);
    let kz = (f32(z) - f32(params.nz) * 0.5) * (TWO_PI / params.patch_z);
    let len_k = sqrt(kx * kx + kz * kz);
    if (len_k == 0.0) {
        let zero = vec2<f32>(0.0, 0.0);
        height[idx] = zero;
        disp_x[idx] = zero;
        disp_z[idx] = zero;
        grad_x[idx] = zero;
        grad_z[idx] = zero;
        return;
    }

    let omega = sqrt(params.gravity * len_k);
    let c = cos(omega * params.time);
    let s = sin(omega * params.time);

    let mx = (params.nx - x) % params.nx;
    let mz = (params.nz - z) % params.nz;
    let a = h0[idx];
    let b = h0[mz * params.nx + mx];

    let re = a.x * c - a.y * s + b.x * c - b.y * s;
    let im = a.x * s + a.y * c - b.x * s - b.y * c;
    let ux = kx / len_k;
    let uz = kz / len_k;

    height[idx] = vec2<f32>(re, im);
    disp_x[idx] = vec2<f32>(ux * im, -ux * re);
    disp_z[idx] = vec2<f32>(uz * im, -uz * re);
    grad_x[idx] = vec2<f32>(-kx * im, kx * re);
    grad_z[idx] = vec2<f32>(-kz * im, kz * re);
}
`

// stageShaderHeader is one radix-2 Stockham pass of an inverse transform
// along lines of a 2D grid. The pass reads src and writes dst, so passes
// ping-pong between two buffers.
const stageShaderHeader = `
struct Stage {
    n: u32,
    ns: u32,
    lines: u32,
    line_stride: u32,
    elem_stride: u32,
    butterflies: u32,
    pad0: u32,
    pad1: u32,
}

@group(0) @binding(0) var<uniform> stage: Stage;
@group(0) @binding(1) var<storage, read> src: array<vec2<f32>>;
@group(0) @binding(2) var<storage, read_write> dst: array<vec2<f32>>;

const TWO_PI: f32 = 6.283185307179586;

fn butterfly(id: u32) {
    if (id >= stage.butterflies) {
        return;
    }

    let half_n = stage.n / 2u;
    let line = id / half_n;
    let j = id % half_n;
    let base = line * stage.line_stride;
    let k = j % stage.ns;

    let a = src[base + j * stage.elem_stride];
    let b = src[base + (j + half_n) * stage.elem_stride];
    let angle = TWO_PI * f32(k) / f32(2u * stage.ns);
    let w = vec2<f32>(cos(angle), sin(angle));
    let t = vec2<f32>(b.x * w.x - b.y * w.y, b.x * w.y + b.y * w.x);

    let o = (j / stage.ns) * stage.ns * 2u + k;
    dst[base + o * stage.elem_stride] = a + t;
    dst[base + (o + stage.ns) * stage.elem_stride] = a - t;
}
`

// stageShaderSource returns the Stockham pass specialised for a workgroup
// of wx × wy invocations each computing per butterflies. The per-invocation
// calls are unrolled since loops do not survive the SPIR-V backend.
func stageShaderSource(wx, wy, per uint32) string {
	var sb strings.Builder

	sb.WriteString(stageShaderHeader)
	fmt.Fprintf(&sb, `
@compute @workgroup_size(%d, %d, 1)
fn main(
    @builtin(workgroup_id) wid: vec3<u32>,
    @builtin(num_workgroups) groups: vec3<u32>,
    @builtin(local_invocation_index) lid: u32,
) {
    let first = ((wid.y * groups.x + wid.x) * %du + lid) * %du;
`, wx, wy, wx*wy, per)

	for i := range per {
		fmt.Fprintf(&sb, "    butterfly(first + %du);\n", i)
	}

	sb.WriteString("}\n")

	return sb.String()
}

// compileSPIRV translates WGSL to little-endian SPIR-V words.
func compileSPIRV(source string) ([]uint32, error) {
	spirvBytes, err := naga.Compile(source)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrShaderCompile, err)
	}

	words := make([]uint32, len(spirvBytes)/4)
	for i := range words {
		words[i] = uint32(spirvBytes[i*4]) |
			uint32(spirvBytes[i*4+1])<<8 |
			uint32(spirvBytes[i*4+2])<<16 |
			uint32(spirvBytes[i*4+3])<<24
	}

	return words, nil
}
