package world

// KindInfo holds per-kind constants.
type KindInfo struct {
	Name      string  `json:"name"`
	Width     float64 `json:"width"`
	Height    float64 `json:"height"`
	MaxHealth float32 `json:"max_health"`
	Caps      Capability
}

const (
	livingCaps = HasMetadata | HasEquipment | HasVelocity | HasHealth | HasHeadLook
	objectCaps = HasMetadata | HasVelocity
)

var playerInfo = KindInfo{Name: "player", Width: 0.6, Height: 1.8, MaxHealth: 20, Caps: livingCaps}

var orbInfo = KindInfo{Name: "experience_orb", Width: 0.5, Height: 0.5, Caps: HasVelocity}

var mobKinds = map[int32]KindInfo{
	50:  {"creeper", 0.6, 1.7, 20, livingCaps},
	51:  {"skeleton", 0.6, 1.99, 20, livingCaps},
	52:  {"spider", 1.4, 0.9, 16, livingCaps},
	53:  {"giant", 3.6, 12, 100, livingCaps},
	54:  {"zombie", 0.6, 1.95, 20, livingCaps},
	55:  {"slime", 0.51, 0.51, 16, livingCaps},
	56:  {"ghast", 4, 4, 10, livingCaps},
	57:  {"zombie_pigman", 0.6, 1.95, 20, livingCaps},
	58:  {"enderman", 0.6, 2.9, 40, livingCaps},
	59:  {"cave_spider", 0.7, 0.5, 12, livingCaps},
	60:  {"silverfish", 0.4, 0.3, 8, livingCaps},
	61:  {"blaze", 0.6, 1.8, 20, livingCaps},
	62:  {"magma_cube", 0.51, 0.51, 16, livingCaps},
	63:  {"ender_dragon", 16, 8, 200, livingCaps},
	64:  {"wither", 0.9, 3.5, 300, livingCaps},
	65:  {"bat", 0.5, 0.9, 6, livingCaps},
	66:  {"witch", 0.6, 1.95, 26, livingCaps},
	67:  {"endermite", 0.4, 0.3, 8, livingCaps},
	68:  {"guardian", 0.85, 0.85, 30, livingCaps},
	69:  {"shulker", 1, 1, 30, livingCaps},
	90:  {"pig", 0.9, 0.9, 10, livingCaps},
	91:  {"sheep", 0.9, 1.3, 8, livingCaps},
	92:  {"cow", 0.9, 1.4, 10, livingCaps},
	93:  {"chicken", 0.4, 0.7, 4, livingCaps},
	94:  {"squid", 0.8, 0.8, 10, livingCaps},
	95:  {"wolf", 0.6, 0.85, 8, livingCaps},
	96:  {"mooshroom", 0.9, 1.4, 10, livingCaps},
	97:  {"snow_golem", 0.7, 1.9, 4, livingCaps},
	98:  {"ocelot", 0.6, 0.7, 10, livingCaps},
	99:  {"iron_golem", 1.4, 2.7, 100, livingCaps},
	100: {"horse", 1.3964844, 1.6, 15, livingCaps},
	101: {"rabbit", 0.4, 0.5, 3, livingCaps},
	102: {"polar_bear", 1.3, 1.4, 30, livingCaps},
	103: {"llama", 0.9, 1.87, 15, livingCaps},
	120: {"villager", 0.6, 1.95, 20, livingCaps},
}

var objectKinds = map[int32]KindInfo{
	1:  {"boat", 1.375, 0.5625, 0, objectCaps},
	2:  {"item", 0.25, 0.25, 0, objectCaps},
	3:  {"area_effect_cloud", 6, 0.5, 0, objectCaps},
	10: {"minecart", 0.98, 0.7, 0, objectCaps},
	50: {"tnt", 0.98, 0.98, 0, objectCaps},
	51: {"ender_crystal", 2, 2, 0, objectCaps},
	60: {"arrow", 0.5, 0.5, 0, objectCaps},
	61: {"snowball", 0.25, 0.25, 0, objectCaps},
	62: {"egg", 0.25, 0.25, 0, objectCaps},
	63: {"fireball", 1, 1, 0, objectCaps},
	64: {"small_fireball", 0.3125, 0.3125, 0, objectCaps},
	65: {"ender_pearl", 0.25, 0.25, 0, objectCaps},
	66: {"wither_skull", 0.3125, 0.3125, 0, objectCaps},
	70: {"falling_block", 0.98, 0.98, 0, objectCaps},
	71: {"item_frame", 0.5, 0.5, 0, objectCaps},
	72: {"eye_of_ender", 0.25, 0.25, 0, objectCaps},
	73: {"potion", 0.25, 0.25, 0, objectCaps},
	75: {"experience_bottle", 0.25, 0.25, 0, objectCaps},
	76: {"firework_rocket", 0.25, 0.25, 0, objectCaps},
	77: {"leash_knot", 0.375, 0.5, 0, objectCaps},
	78: {"armor_stand", 0.5, 1.975, 20, objectCaps | HasEquipment},
	90: {"fishing_bobber", 0.25, 0.25, 0, objectCaps},
}

// LookupKind returns the constants of a kind. Unknown mob and object ids fall
// back to a generic record that keeps the category's capabilities.
func LookupKind(k Kind) KindInfo {
	switch k.Category {
	case CategoryPlayer:
		return playerInfo
	case CategoryExperienceOrb:
		return orbInfo
	case CategoryMob:
		if info, ok := mobKinds[k.TypeID]; ok {
			return info
		}
		return KindInfo{Name: "unknown_mob", Width: 1, Height: 1, MaxHealth: 20, Caps: livingCaps}
	default:
		if info, ok := objectKinds[k.TypeID]; ok {
			return info
		}
		return KindInfo{Name: "unknown_object", Width: 0.5, Height: 0.5, Caps: objectCaps}
	}
}
