package glapi

type Enum = uint32

const (
	NO_ERROR Enum = 0
	NONE     Enum = 0
	FALSE         = 0
	TRUE          = 1

	BLEND                    Enum = 0x0BE2
	CULL_FACE                Enum = 0x0B44
	DEPTH_TEST               Enum = 0x0B71
	STENCIL_TEST             Enum = 0x0B90
	SCISSOR_TEST             Enum = 0x0C11
	POLYGON_OFFSET_FILL      Enum = 0x8037
	DEPTH_CLAMP              Enum = 0x864F
	SAMPLE_ALPHA_TO_COVERAGE Enum = 0x809E
	FRAMEBUFFER_SRGB         Enum = 0x8DB9

	FRONT          Enum = 0x0404
	BACK           Enum = 0x0405
	FRONT_AND_BACK Enum = 0x0408
	CW             Enum = 0x0900
	CCW            Enum = 0x0901
	LINE           Enum = 0x1B01
	FILL           Enum = 0x1B02

	ZERO                     Enum = 0
	ONE                      Enum = 1
	SRC_COLOR                Enum = 0x0300
	ONE_MINUS_SRC_COLOR      Enum = 0x0301
	SRC_ALPHA                Enum = 0x0302
	ONE_MINUS_SRC_ALPHA      Enum = 0x0303
	DST_ALPHA                Enum = 0x0304
	ONE_MINUS_DST_ALPHA      Enum = 0x0305
	DST_COLOR                Enum = 0x0306
	ONE_MINUS_DST_COLOR      Enum = 0x0307
	SRC_ALPHA_SATURATE       Enum = 0x0308
	CONSTANT_COLOR           Enum = 0x8001
	ONE_MINUS_CONSTANT_COLOR Enum = 0x8002

	FUNC_ADD              Enum = 0x8006
	MIN                   Enum = 0x8007
	MAX                   Enum = 0x8008
	FUNC_SUBTRACT         Enum = 0x800A
	FUNC_REVERSE_SUBTRACT Enum = 0x800B

	NEVER    Enum = 0x0200
	LESS     Enum = 0x0201
	EQUAL    Enum = 0x0202
	LEQUAL   Enum = 0x0203
	GREATER  Enum = 0x0204
	NOTEQUAL Enum = 0x0205
	GEQUAL   Enum = 0x0206
	ALWAYS   Enum = 0x0207

	KEEP      Enum = 0x1E00
	REPLACE   Enum = 0x1E01
	INCR      Enum = 0x1E02
	DECR      Enum = 0x1E03
	INVERT    Enum = 0x150A
	INCR_WRAP Enum = 0x8507
	DECR_WRAP Enum = 0x8508

	DEPTH_BUFFER_BIT   Enum = 0x00000100
	STENCIL_BUFFER_BIT Enum = 0x00000400
	COLOR_BUFFER_BIT   Enum = 0x00004000

	ARRAY_BUFFER         Enum = 0x8892
	ELEMENT_ARRAY_BUFFER Enum = 0x8893
	UNIFORM_BUFFER       Enum = 0x8A11
	COPY_WRITE_BUFFER    Enum = 0x8F37
	ARRAY_BUFFER_BINDING Enum = 0x8894

	STREAM_DRAW  Enum = 0x88E0
	STREAM_READ  Enum = 0x88E1
	STATIC_DRAW  Enum = 0x88E4
	DYNAMIC_DRAW Enum = 0x88E8

	BYTE                           Enum = 0x1400
	UNSIGNED_BYTE                  Enum = 0x1401
	SHORT                          Enum = 0x1402
	UNSIGNED_SHORT                 Enum = 0x1403
	INT                            Enum = 0x1404
	UNSIGNED_INT                   Enum = 0x1405
	FLOAT                          Enum = 0x1406
	HALF_FLOAT                     Enum = 0x140B
	UNSIGNED_INT_24_8              Enum = 0x84FA
	FLOAT_32_UNSIGNED_INT_24_8_REV Enum = 0x8DAD

	TEXTURE_2D                  Enum = 0x0DE1
	TEXTURE_3D                  Enum = 0x806F
	TEXTURE_CUBE_MAP            Enum = 0x8513
	TEXTURE_CUBE_MAP_POSITIVE_X Enum = 0x8515
	TEXTURE0                    Enum = 0x84C0
	TEXTURE_MAG_FILTER          Enum = 0x2800
	TEXTURE_MIN_FILTER          Enum = 0x2801
	TEXTURE_WRAP_S              Enum = 0x2802
	TEXTURE_WRAP_T              Enum = 0x2803
	TEXTURE_WRAP_R              Enum = 0x8072
	TEXTURE_MIN_LOD             Enum = 0x813A
	TEXTURE_MAX_LOD             Enum = 0x813B
	TEXTURE_BASE_LEVEL          Enum = 0x813C
	TEXTURE_MAX_LEVEL           Enum = 0x813D
	TEXTURE_MAX_ANISOTROPY      Enum = 0x84FE
	TEXTURE_COMPARE_MODE        Enum = 0x884C
	TEXTURE_COMPARE_FUNC        Enum = 0x884D
	COMPARE_REF_TO_TEXTURE      Enum = 0x884E
	TEXTURE_BORDER_COLOR        Enum = 0x1004

	NEAREST                Enum = 0x2600
	LINEAR                 Enum = 0x2601
	NEAREST_MIPMAP_NEAREST Enum = 0x2700
	LINEAR_MIPMAP_NEAREST  Enum = 0x2701
	NEAREST_MIPMAP_LINEAR  Enum = 0x2702
	LINEAR_MIPMAP_LINEAR   Enum = 0x2703

	REPEAT          Enum = 0x2901
	CLAMP_TO_BORDER Enum = 0x812D
	CLAMP_TO_EDGE   Enum = 0x812F
	MIRRORED_REPEAT Enum = 0x8370

	DEPTH_COMPONENT Enum = 0x1902
	RED             Enum = 0x1903
	RGB             Enum = 0x1907
	RGBA            Enum = 0x1908
	BGRA            Enum = 0x80E1
	RG              Enum = 0x8227
	DEPTH_STENCIL   Enum = 0x84F9
	RED_INTEGER     Enum = 0x8D94

	RGBA8              Enum = 0x8058
	R8                 Enum = 0x8229
	RG8                Enum = 0x822B
	R32F               Enum = 0x822E
	RG32F              Enum = 0x8230
	R16UI              Enum = 0x8234
	R32UI              Enum = 0x8236
	RGBA32F            Enum = 0x8814
	RGB32F             Enum = 0x8815
	RGBA16F            Enum = 0x881A
	DEPTH_COMPONENT16  Enum = 0x81A5
	DEPTH24_STENCIL8   Enum = 0x88F0
	DEPTH_COMPONENT32F Enum = 0x8CAC
	DEPTH32F_STENCIL8  Enum = 0x8CAD

	FRAMEBUFFER              Enum = 0x8D40
	READ_FRAMEBUFFER         Enum = 0x8CA8
	DRAW_FRAMEBUFFER         Enum = 0x8CA9
	FRAMEBUFFER_COMPLETE     Enum = 0x8CD5
	COLOR_ATTACHMENT0        Enum = 0x8CE0
	DEPTH_ATTACHMENT         Enum = 0x8D00
	STENCIL_ATTACHMENT       Enum = 0x8D20
	DEPTH_STENCIL_ATTACHMENT Enum = 0x821A

	FRAGMENT_SHADER        Enum = 0x8B30
	VERTEX_SHADER          Enum = 0x8B31
	GEOMETRY_SHADER        Enum = 0x8DD9
	TESS_EVALUATION_SHADER Enum = 0x8E87
	TESS_CONTROL_SHADER    Enum = 0x8E88
	COMPILE_STATUS         Enum = 0x8B81
	LINK_STATUS            Enum = 0x8B82
	INFO_LOG_LENGTH        Enum = 0x8B84
	INVALID_INDEX          Enum = 0xFFFFFFFF

	POINTS         Enum = 0x0000
	LINES          Enum = 0x0001
	LINE_STRIP     Enum = 0x0003
	TRIANGLES      Enum = 0x0004
	TRIANGLE_STRIP Enum = 0x0005

	SAMPLES_PASSED         Enum = 0x8914
	TIMESTAMP              Enum = 0x8E28
	QUERY_RESULT           Enum = 0x8866
	QUERY_RESULT_AVAILABLE Enum = 0x8867

	CURRENT_PROGRAM      Enum = 0x8B8D
	VERTEX_ARRAY_BINDING Enum = 0x85B5
	ACTIVE_TEXTURE       Enum = 0x84E0
	TEXTURE_BINDING_2D   Enum = 0x8069
	SAMPLER_BINDING      Enum = 0x8919
	FRAMEBUFFER_BINDING  Enum = 0x8CA6
)
