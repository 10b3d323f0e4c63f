//go:build opencl

package opencl

// kernelSource holds the evolve kernel, one radix-2 Stockham pass of the
// inverse transform and a buffer copy. PER, the butterflies per work item,
// is supplied as a build option.
const kernelSource = `
#ifndef PER
#define PER 1
#endif

#define TWO_PI 6.283185307179586f

__kernel void evolve(
    const int nx,
    const int nz,
    const float patch_x,
    const float patch_z,
    const float gravity,
    const float t,
    __global const float2* h0,
    __global float2* height,
    __global float2* disp_x,
    __global float2* disp_z,
    __global float2* grad_x,
    __global float2* grad_z)
{
    int x = get_global_id(0);
    int z = get_global_id(1);
    if (x >= nx || z >= nz) {
        return;
    }

    int idx = z * nx + x;
    float kx = ((float)x - (float)nx * 0.5f) * (TWO_PI / patch_x);
    float kz = ((float)z - (float)nz * 0.5f) * (TWO_PI / patch_z);
    float len_k = sqrt(kx * kx + kz * kz);
    if (len_k == 0.0f) {
        float2 zero = (float2)(0.0f, 0.0f);
        height[idx] = zero;
        disp_x[idx] = zero;
        disp_z[idx] = zero;
        grad_x[idx] = zero;
        grad_z[idx] = zero;
        return;
    }

    float omega = sqrt(gravity * len_k);
    float c;
    float s = sincos(omega * t, &c);

    int mx = (nx - x) % nx;
    int mz = (nz - z) % nz;
    float2 a = h0[idx];
    float2 b = h0[mz * nx + mx];

    float re = a.x * c - a.y * s + b.x * c - b.y * s;
    float im = a.x * s + a.y * c - b.x * s - b.y * c;
    float ux = kx / len_k;
    float uz = kz / len_k;

    height[idx] = (float2)(re, im);
    disp_x[idx] = (float2)(ux * im, -ux * re);
    disp_z[idx] = (float2)(uz * im, -uz * re);
    grad_x[idx] = (float2)(-kx * im, kx * re);
    grad_z[idx] = (float2)(-kz * im, kz * re);
}

__kernel void fft_stage(
    const int n,
    const int ns,
    const int line_stride,
    const int elem_stride,
    const int butterflies,
    __global const float2* src,
    __global float2* dst)
{
    int first = get_global_id(0) * PER;
    int half_n = n / 2;

    for (int i = 0; i < PER; i++) {
        int id = first + i;
        if (id >= butterflies) {
            return;
        }

        int line = id / half_n;
        int j = id % half_n;
        int base = line * line_stride;
        int k = j % ns;

        float2 a = src[base + j * elem_stride];
        float2 b = src[base + (j + half_n) * elem_stride];
        float c;
        float s = sincos(TWO_PI * (float)k / (float)(2 * ns), &c);
        float2 tw = (float2)(b.x * c - b.y * s, b.x * s + b.y * c);

        int o = (j / ns) * ns * 2 + k;
        dst[base + o * elem_stride] = a + tw;
        dst[base + (o + ns) * elem_stride] = a - tw;
    }
}

__kernel void copy_buffer(
    const int n,
    __global const float2* src,
    __global float2* dst)
{
    int i = get_global_id(0);
    if (i < n) {
        dst[i] = src[i];
    }
}
`
