// Package profile builds the ordered mutation list from validated
// configuration: feature toggles select capability groups, a GPU profile
// parameterizes the identity injection.
package profile

import (
	"fmt"

	"vkdforge.dev/pkg/vkdforge/internal/domain/anchors"
	m "vkdforge.dev/pkg/vkdforge/internal/model"
)

// capsFile is the capability reporting source file targeted by every
// capability group.
const capsFile = "device.c"

// Toggles enables or disables mutation groups. Each toggle maps to exactly
// one group; the zero value disables everything.
type Toggles struct {
	GPUIdentity     bool
	ShaderModel     bool
	WaveOps         bool
	ResourceBinding bool
	ShaderOps       bool
	MeshShaders     bool
	RayTracing      bool
	SamplerFeedback bool
	Textures        bool
	TriangleFan     bool
}

// DefaultToggles enables every group.
func DefaultToggles() Toggles {
	return Toggles{
		GPUIdentity:     true,
		ShaderModel:     true,
		WaveOps:         true,
		ResourceBinding: true,
		ShaderOps:       true,
		MeshShaders:     true,
		RayTracing:      true,
		SamplerFeedback: true,
		Textures:        true,
		TriangleFan:     true,
	}
}

// BuildMutations assembles the full ordered mutation list for one run: file
// patches first, then capability substitutions, then the identity injection.
// The order is fixed; later mutations may depend on earlier text.
func BuildMutations(gpu GPUProfile, toggles Toggles, patches []m.Mutation) []m.Mutation {
	mutations := make([]m.Mutation, 0, len(patches)+32)
	mutations = append(mutations, patches...)

	force := func(id, lvalue, value string) {
		mutations = append(mutations, m.NewSubstitution(id, capsFile, lvalue, value, m.ReplaceAll, false))
	}

	forceOne := func(id, lvalue, value string) {
		mutations = append(mutations, m.NewSubstitution(id, capsFile, lvalue, value, m.ReplaceOne, false))
	}

	if toggles.GPUIdentity {
		force("gpu-vendor-id", "adapter_id.vendor_id", gpu.VendorID)
		force("gpu-device-id", "adapter_id.device_id", gpu.DeviceID)
		force("gpu-shared-memory", "SharedSystemMemory", fmt.Sprintf("%dULL * 1024 * 1024", gpu.MemoryMiB))
		mutations = append(mutations, identityInjection(gpu))
	}

	if toggles.ShaderModel {
		force("shader-model", "data->HighestShaderModel", "D3D_SHADER_MODEL_6_7")
		force("shader-model-info", "info.HighestShaderModel", "D3D_SHADER_MODEL_6_7")
	}

	if toggles.WaveOps {
		force("wave-ops", "options1.WaveOps", "TRUE")
		force("wave-lane-min", "options1.WaveLaneCountMin", "32")
		force("wave-lane-max", "options1.WaveLaneCountMax", "128")
	}

	if toggles.ResourceBinding {
		force("resource-binding-tier", "options.ResourceBindingTier", "D3D12_RESOURCE_BINDING_TIER_3")
		force("tiled-resources-tier", "options.TiledResourcesTier", "D3D12_TILED_RESOURCES_TIER_4")
		force("resource-heap-tier", "options.ResourceHeapTier", "D3D12_RESOURCE_HEAP_TIER_2")
	}

	if toggles.ShaderOps {
		force("double-precision-ops", "options.DoublePrecisionFloatShaderOps", "TRUE")
		force("int64-ops", "options1.Int64ShaderOps", "TRUE")
		force("native-16bit-ops", "options4.Native16BitShaderOpsSupported", "TRUE")
	}

	if toggles.MeshShaders {
		force("mesh-shader-tier", "options7.MeshShaderTier", "D3D12_MESH_SHADER_TIER_1")
		force("enhanced-barriers", "options12.EnhancedBarriersSupported", "TRUE")
	}

	if toggles.RayTracing {
		force("raytracing-tier", "options5.RaytracingTier", "D3D12_RAYTRACING_TIER_1_1")
		force("render-passes-tier", "options5.RenderPassesTier", "D3D12_RENDER_PASS_TIER_2")
		force("shading-rate-tier", "options6.VariableShadingRateTier", "D3D12_VARIABLE_SHADING_RATE_TIER_2")
		forceOne("shading-rate-tile-size", "options6.ShadingRateImageTileSize", "8")
		force("background-processing", "options6.BackgroundProcessingSupported", "TRUE")
	}

	if toggles.SamplerFeedback {
		force("sampler-feedback-tier", "options7.SamplerFeedbackTier", "D3D12_SAMPLER_FEEDBACK_TIER_1_0")
		force("depth-bounds-test", "options2.DepthBoundsTestSupported", "TRUE")
	}

	if toggles.Textures {
		force("unaligned-block-textures", "options8.UnalignedBlockTexturesSupported", "TRUE")
	}

	if toggles.TriangleFan {
		force("triangle-fan", "options15.TriangleFanSupported", "TRUE")
	}

	return mutations
}

// IdentityMarker is the sentinel embedded in the injected identity block.
const IdentityMarker = "vkdforge: gpu-identity"

// identityInjection builds the structural injection that pins the reported
// adapter identity inside the device capability initializer. The anchor
// cascade tolerates upstream drift: exact signature, relaxed signature, last
// capability assignment, then a terminal file probe that only confirms the
// file without injecting.
func identityInjection(gpu GPUProfile) m.Mutation {
	strategies := []m.AnchorStrategy{
		anchors.NewDeclaration(
			"caps-init-signature",
			`static\s+void\s+d3d12_device_caps_init\(struct\s+d3d12_device\s+\*(?P<device>\w+)\)`,
		),
		anchors.NewDeclaration(
			"caps-init-relaxed",
			`void\s+d3d12_device_caps_init\([^)]*\*(?P<device>\w+)\)`,
		),
		anchors.NewSibling(
			"last-feature-option",
			`(?P<device>\w+)->feature_options\w*\.\w+\s*=\s*[^;\n]+;`,
		),
		anchors.NewFileMarker("device-create-probe", "d3d12_device_create"),
	}

	return m.NewInjection("gpu-identity", capsFile, IdentityMarker, strategies, identityBlock(gpu), false)
}

// identityBlock renders the generated C block. The template is a typed
// function over the captured identifiers so it can be tested without any
// anchor machinery.
func identityBlock(gpu GPUProfile) m.BlockTemplate {
	return func(captures map[string]string) (string, error) {
		device := captures["device"]
		if device == "" {
			return "", fmt.Errorf("anchor did not capture a device identifier")
		}

		return fmt.Sprintf(
			"\n    /* %s: %s */\n"+
				"    %s->adapter_info.vendor_id = %s;\n"+
				"    %s->adapter_info.device_id = %s;\n"+
				"    %s->adapter_info.description = \"%s\";\n"+
				"    %s->adapter_info.shared_system_memory = %dULL * 1024 * 1024;\n",
			IdentityMarker, gpu.Name,
			device, gpu.VendorID,
			device, gpu.DeviceID,
			device, gpu.Description,
			device, gpu.MemoryMiB,
		), nil
	}
}
