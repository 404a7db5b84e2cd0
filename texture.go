package rendercore

import (
	"image"

	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/core1_0"
)

// Texture is a sampled 2D image: a device-local image bundle in
// shader-read-only layout plus the sampler and the descriptor set that binds
// both to a textured pipeline. The descriptor set survives pipeline rebuilds
// because every textured pipeline declares the same set layout.
type Texture struct {
	device core1_0.Device

	bundle  *ResourceBundle
	sampler core1_0.Sampler
	pool    core1_0.DescriptorPool
	set     core1_0.DescriptorSet
}

// NewTexture uploads tightly packed RGBA pixels into a sampled image and
// binds it to pipeline's texture slot. len(pixels) must be width*height*4;
// pipeline must have been built with TextureSampling set.
func NewTexture(ctx *DeviceContext, pipeline *Pipeline, pixels []byte, width, height int) (*Texture, error) {
	if len(pixels) != width*height*4 {
		return nil, errors.Newf("texture pixel data is %d bytes, expected %d for %dx%d RGBA", len(pixels), width*height*4, width, height)
	}
	if pipeline.DescriptorLayout() == nil {
		return nil, errors.New("pipeline was built without texture sampling")
	}

	bundle, err := NewImageBundle(ctx.Device(), ctx.PhysicalDevice(), width, height,
		core1_0.FormatR8G8B8A8SRGB,
		core1_0.ImageTilingOptimal,
		core1_0.ImageUsageTransferDst|core1_0.ImageUsageSampled,
		core1_0.ImageAspectColor,
		core1_0.MemoryPropertyDeviceLocal)
	if err != nil {
		return nil, errors.Wrap(err, "creating texture image")
	}

	t := &Texture{
		device: ctx.Device(),
		bundle: bundle,
	}

	err = UploadImagePixels(ctx, bundle, pixels, width, height)
	if err != nil {
		t.Release()
		return nil, err
	}

	properties, err := ctx.PhysicalDevice().Properties()
	if err != nil {
		t.Release()
		return nil, errors.Wrap(err, "querying device properties")
	}

	t.sampler, _, err = ctx.Device().CreateSampler(nil, core1_0.SamplerCreateInfo{
		MagFilter:    core1_0.FilterLinear,
		MinFilter:    core1_0.FilterLinear,
		AddressModeU: core1_0.SamplerAddressModeRepeat,
		AddressModeV: core1_0.SamplerAddressModeRepeat,
		AddressModeW: core1_0.SamplerAddressModeRepeat,

		AnisotropyEnable: true,
		MaxAnisotropy:    properties.Limits.MaxSamplerAnisotropy,

		BorderColor: core1_0.BorderColorIntOpaqueBlack,

		MipmapMode: core1_0.SamplerMipmapModeLinear,
	})
	if err != nil {
		t.Release()
		return nil, errors.Wrap(err, "creating texture sampler")
	}

	err = t.allocateDescriptorSet(pipeline)
	if err != nil {
		t.Release()
		return nil, err
	}

	return t, nil
}

func (t *Texture) allocateDescriptorSet(pipeline *Pipeline) error {
	var err error
	t.pool, _, err = t.device.CreateDescriptorPool(nil, core1_0.DescriptorPoolCreateInfo{
		MaxSets: 1,
		PoolSizes: []core1_0.DescriptorPoolSize{
			{
				Type:            core1_0.DescriptorTypeCombinedImageSampler,
				DescriptorCount: 1,
			},
		},
	})
	if err != nil {
		return errors.Wrap(err, "creating descriptor pool")
	}

	sets, _, err := t.device.AllocateDescriptorSets(core1_0.DescriptorSetAllocateInfo{
		DescriptorPool: t.pool,
		SetLayouts:     []core1_0.DescriptorSetLayout{pipeline.DescriptorLayout()},
	})
	if err != nil {
		return errors.Wrap(err, "allocating descriptor set")
	}
	t.set = sets[0]

	return t.device.UpdateDescriptorSets([]core1_0.WriteDescriptorSet{
		{
			DstSet:          t.set,
			DstBinding:      0,
			DstArrayElement: 0,

			DescriptorType: core1_0.DescriptorTypeCombinedImageSampler,

			ImageInfo: []core1_0.DescriptorImageInfo{
				{
					ImageView:   t.bundle.View(),
					Sampler:     t.sampler,
					ImageLayout: core1_0.ImageLayoutShaderReadOnlyOptimal,
				},
			},
		},
	}, nil)
}

// DescriptorSet returns the set bound to draws that sample this texture.
func (t *Texture) DescriptorSet() core1_0.DescriptorSet { return t.set }

// Release frees the descriptor pool, sampler and image. Call only after the
// device is idle.
func (t *Texture) Release() {
	if t.pool != nil {
		t.pool.Destroy(nil)
		t.pool = nil
		t.set = nil
	}
	if t.sampler != nil {
		t.sampler.Destroy(nil)
		t.sampler = nil
	}
	if t.bundle != nil {
		t.bundle.Release()
		t.bundle = nil
	}
}

// RGBAPixels flattens a decoded image into the tightly packed RGBA byte
// stream NewTexture expects, along with the image dimensions.
func RGBAPixels(decoded image.Image) ([]byte, int, int) {
	bounds := decoded.Bounds()
	size := bounds.Size()

	pixels := make([]byte, 0, size.X*size.Y*4)
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			r, g, b, a := decoded.At(x, y).RGBA()
			pixels = append(pixels, byte(r>>8), byte(g>>8), byte(b>>8), byte(a>>8))
		}
	}

	return pixels, size.X, size.Y
}
