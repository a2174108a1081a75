/*
Package gx is a small rendering layer over Vulkan 1.3. It hides most of the bookkeeping a
Vulkan renderer needs (memory, descriptor sets, layout transitions, frame pacing and object
lifetimes) behind a handful of handle based calls, while keeping the native objects reachable
for code that needs more than gx exposes.

gx does not talk to Vulkan directly. Everything it needs from the GPU goes through the
native.Device interface; package vulkan implements it on top of goki/vulkan, and
package native/nativetest implements it in memory so the bookkeeping can be tested without
a GPU.

Handles

Buffers, textures, samplers, shaders and pipelines live in pools and are referred to by
typed handles. A handle carries a slot index and a generation, so a handle kept past the
destruction of its object is detected instead of silently aliasing a newer one. Destroying
an object does not free it right away: the native objects are queued and released once the
frames that could still use them have finished on the GPU.

	Handle		index and generation of a pooled object
	Buffer		device memory, optionally host visible, addressable from shaders
	Texture		an image with a view, bound into the bindless arrays on creation
	Sampler		a sampler, bound into the bindless sampler array
	Shader		a SPIR-V module with vs_main/fs_main entry points
	Pipeline	a graphics pipeline, compiled lazily on first bind

Descriptors

Textures and samplers are bindless. Every texture is visible to every shader through a
single array indexed by TextureHandle.Index(), and samplers likewise, so drawing with a
texture is a matter of pushing its index. Set 3 holds the per frame uniform data written
with UpdatePerFrame. The arrays grow as needed, the old sets are retired with the same
deferred mechanism that destroys objects.

Frames

A frame looks like:

	1. Check IsSwapchainDirty and call ResizeSwapchain when the window changed
	2. AcquireCurrentSwapchainTexture
	3. AcquireCommand, record passes between CmdBeginRendering and CmdEndRendering
	4. CmdTransitionSwapchainLayout(native.LayoutPresentSrc)
	5. SubmitCommand with the swapchain texture to present it

Command buffers come from a ring of reusable slots, each signalled on a timeline
semaphore. Uploads and downloads go through the staging device, which copies through a
host visible ring buffer in the same submissions.
*/
package gx
