package memory

import (
	"encoding/binary"
	"time"

	"github.com/valerio/go-jeebie/jeebie/bit"
)

const titleLength = 11

const (
	entryPointAddress       = 0x100
	logoAddress             = 0x104
	titleAddress            = 0x134
	manufacturerCodeAddress = 0x13F
	cgbFlagAddress          = 0x143
	newLicenseCodeAddress   = 0x144
	sgbFlagAddress          = 0x146
	cartridgeTypeAddress    = 0x147
	romSizeAddress          = 0x148
	ramSizeAddress          = 0x149
	destinationCodeAddress  = 0x14A
	oldLicenseCodeAddress   = 0x14B
	versionNumberAddress    = 0x14C
	headerChecksumAddress   = 0x14D
	globalChecksumAddress   = 0x14E
)

// MBCType identifies which mapper chip a cartridge uses.
type MBCType uint8

const (
	NoMBCType MBCType = iota
	MBC1Type
	MBC1MultiType
	MBC2Type
	MBC3Type
	MBC5Type
	MBCUnknownType
)

// ramBankCountFromHeader maps the header's 0x149 RAM-size byte to a bank count
// of 8KiB banks (0 and 1 both mean "no RAM" in practice; 1 is unused by any
// licensed cartridge but handled defensively).
func ramBankCountFromHeader(ramSizeByte uint8) uint8 {
	switch ramSizeByte {
	case 0x00, 0x01:
		return 0
	case 0x02:
		return 1
	case 0x03:
		return 4
	case 0x04:
		return 16
	case 0x05:
		return 8
	default:
		return 0
	}
}

// Cartridge holds the raw ROM image plus the header fields needed to select
// and construct the right MBC.
type Cartridge struct {
	data           []byte
	title          string
	headerChecksum uint16
	globalChecksum uint16
	version        uint8
	cartType       uint8
	romSize        uint8
	ramSize        uint8

	mbcType      MBCType
	hasBattery   bool
	hasRTC       bool
	hasRumble    bool
	isMBC30      bool
	ramBankCount uint8
	cgbFlag      uint8
}

// NewCartridge creates an empty cartridge, useful only for debugging purposes.
func NewCartridge() *Cartridge {
	return &Cartridge{
		data:    make([]byte, 0x10000),
		mbcType: NoMBCType,
	}
}

// NewCartridgeWithData initializes a new Cartridge from a slice of bytes.
func NewCartridgeWithData(bytes []byte) *Cartridge {
	titleBytes := bytes[titleAddress : titleAddress+titleLength]

	cart := &Cartridge{
		data:           make([]byte, len(bytes)),
		title:          cleanGameboyTitle(titleBytes),
		headerChecksum: bit.Combine(bytes[headerChecksumAddress], bytes[headerChecksumAddress+1]),
		globalChecksum: bit.Combine(bytes[globalChecksumAddress], bytes[globalChecksumAddress+1]),
		version:        bytes[versionNumberAddress],
		cartType:       bytes[cartridgeTypeAddress],
		romSize:        bytes[romSizeAddress],
		ramSize:        bytes[ramSizeAddress],
		cgbFlag:        bytes[cgbFlagAddress],
	}

	copy(cart.data, bytes)

	cart.ramBankCount = ramBankCountFromHeader(cart.ramSize)
	cart.classifyMBC()

	return cart
}

// IsCGB reports whether the cartridge header declares CGB support (partial
// or exclusive), per the 0x143 flag.
func (c *Cartridge) IsCGB() bool {
	return c.cgbFlag == 0x80 || c.cgbFlag == 0xC0
}

func (c *Cartridge) Title() string { return c.title }

// classifyMBC decodes the 0x147 cartridge-type byte into an MBCType plus the
// battery/RTC/rumble/MBC30 flags the constructors in mbc.go need.
func (c *Cartridge) classifyMBC() {
	switch c.cartType {
	case 0x00, 0x08, 0x09:
		c.mbcType = NoMBCType
		c.hasBattery = c.cartType == 0x09
	case 0x01, 0x02, 0x03:
		c.mbcType = MBC1Type
		c.hasBattery = c.cartType == 0x03
	case 0x05, 0x06:
		c.mbcType = MBC2Type
		c.hasBattery = c.cartType == 0x06
	case 0x0F, 0x10, 0x11, 0x12, 0x13:
		c.mbcType = MBC3Type
		c.hasRTC = c.cartType == 0x0F || c.cartType == 0x10
		c.hasBattery = c.cartType == 0x0F || c.cartType == 0x10 || c.cartType == 0x13
		// MBC30 is not identified by a distinct header byte; real carts that
		// use it declare ramSize >= 64KiB, which no genuine MBC3 title does.
		c.isMBC30 = c.ramBankCount >= 8
	case 0x19, 0x1A, 0x1B, 0x1C, 0x1D, 0x1E:
		c.mbcType = MBC5Type
		c.hasRumble = c.cartType >= 0x1C
		c.hasBattery = c.cartType == 0x1B || c.cartType == 0x1E
	default:
		c.mbcType = MBCUnknownType
	}
}

// ReadByte reads a byte at the specified address. Does not check bounds, so the caller must make sure the
// address is valid for the cartridge.
func (c *Cartridge) ReadByte(addr uint16) uint8 {
	return c.data[addr]
}

const rtcTrailerSize = 18 // 5 latched + 5 live RTC bytes + 8-byte base timestamp

// SaveFile serializes the cartridge's persistent state (external RAM, and
// for MBC3+RTC a trailer with the latched/live RTC registers plus a base
// Unix timestamp) for writing to a `.sav` file. Returns nil if the
// cartridge has no battery-backed state to save.
func SaveFile(mbc MBC) []byte {
	ram := mbc.SaveRAM()
	if ram == nil {
		return nil
	}
	if m3, ok := mbc.(*MBC3); ok && m3.hasRTC {
		binary.LittleEndian.PutUint64(ram[len(ram)-8:], uint64(time.Now().Unix()))
	}
	return ram
}

// LoadFile restores persistent state previously produced by SaveFile.
func LoadFile(mbc MBC, data []byte) {
	mbc.LoadRAM(data)
}
