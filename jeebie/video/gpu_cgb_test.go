package video

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/valerio/go-jeebie/jeebie/addr"
	"github.com/valerio/go-jeebie/jeebie/memory"
)

// newCGBMMU builds an MMU backed by a cartridge whose header declares CGB
// support, so MMU.IsCGB() reports true and VRAM bank 1 / palette RAM behave
// as on real hardware.
func newCGBMMU() *memory.MMU {
	data := make([]byte, 0x8000)
	data[0x143] = 0x80 // CGB flag: supports CGB functions
	cart := memory.NewCartridgeWithData(data)
	return memory.NewWithCartridge(cart)
}

func writeBGPaletteColor(mmu *memory.MMU, palette, colorIndex uint8, lo, hi byte) {
	index := palette*8 + colorIndex*2
	mmu.Write(addr.BGPI, index)
	mmu.Write(addr.BGPD, lo)
	mmu.Write(addr.BGPI, index+1)
	mmu.Write(addr.BGPD, hi)
}

func writeOBJPaletteColor(mmu *memory.MMU, palette, colorIndex uint8, lo, hi byte) {
	index := palette*8 + colorIndex*2
	mmu.Write(addr.OBPI, index)
	mmu.Write(addr.OBPD, lo)
	mmu.Write(addr.OBPI, index+1)
	mmu.Write(addr.OBPD, hi)
}

func TestGPUCGBBackgroundPalette(t *testing.T) {
	mmu := newCGBMMU()
	gpu := NewGpu(mmu)

	mmu.Write(addr.LCDC, 0x91) // LCD on, BG on, unsigned tiles

	tileData := createColorTile(2)
	for i := 0; i < 16; i++ {
		mmu.Write(0x8000+uint16(i), tileData[i])
	}

	// tile map entry (bank 0) selects tile 0; attribute byte (bank 1, same
	// address) selects BG palette 3.
	mmu.Write(0x9800, 0x00)
	mmu.Write(addr.VBK, 0x01)
	mmu.Write(0x9800, 0x03)
	mmu.Write(addr.VBK, 0x00)

	// palette 3, color 2 -> pure red (raw RGB555 0b00000_00000_11111 = 0x001F)
	writeBGPaletteColor(mmu, 3, 2, 0x1F, 0x00)

	mmu.Write(addr.SCX, 0)
	mmu.Write(addr.SCY, 0)

	gpu.line = 0
	gpu.mode = vramReadMode
	gpu.drawScanline()

	pixel := gpu.framebuffer.GetPixel(0, 0)
	assert.Equal(t, uint32(0xFF0000FF), pixel, "should resolve color through CGB BG palette 3, not DMG BGP")
}

func TestGPUCGBBackgroundHFlip(t *testing.T) {
	mmu := newCGBMMU()
	gpu := NewGpu(mmu)

	mmu.Write(addr.LCDC, 0x91)

	// tile where only the leftmost pixel (bit 7) is set to color 1
	var tile [16]byte
	tile[0] = 0x80 // low byte, bit 7 set
	for i := 0; i < 16; i++ {
		mmu.Write(0x8000+uint16(i), tile[i])
	}

	mmu.Write(0x9800, 0x00)
	mmu.Write(addr.VBK, 0x01)
	mmu.Write(0x9800, 0x20) // attribute bit 5: H-flip
	mmu.Write(addr.VBK, 0x00)

	writeBGPaletteColor(mmu, 0, 0, 0x1F, 0x7F) // white-ish, arbitrary
	writeBGPaletteColor(mmu, 0, 1, 0x00, 0x00) // black

	mmu.Write(addr.SCX, 0)
	mmu.Write(addr.SCY, 0)

	gpu.line = 0
	gpu.mode = vramReadMode
	gpu.drawScanline()

	// without the flip, the colored pixel would land at x=0; with H-flip it
	// should land at x=7 instead.
	flippedPixel := gpu.cgbBGColor(0, 1)
	assert.Equal(t, uint32(flippedPixel), gpu.framebuffer.GetPixel(7, 0), "H-flip should move the set pixel to the rightmost column")
	assert.NotEqual(t, uint32(flippedPixel), gpu.framebuffer.GetPixel(0, 0), "leftmost column should no longer carry the set pixel's color")
}

func TestGPUCGBSpritePalette(t *testing.T) {
	mmu := newCGBMMU()
	gpu := NewGpu(mmu)

	mmu.Write(addr.LCDC, 0x93) // LCD on, BG on, sprites on, unsigned tiles

	mmu.Write(addr.SCX, 0)
	mmu.Write(addr.SCY, 0)

	spriteTile := createColorTile(1)
	for i := 0; i < 16; i++ {
		mmu.Write(0x8000+uint16(i), spriteTile[i])
	}

	// sprite 0 at screen (8, 0): OAM Y=16, X=8, tile 0, CGB palette 2
	mmu.Write(addr.OAMStart+0, 16)
	mmu.Write(addr.OAMStart+1, 8)
	mmu.Write(addr.OAMStart+2, 0)
	mmu.Write(addr.OAMStart+3, 0x02) // attribute bits 0-2 select CGB OBJ palette 2

	writeOBJPaletteColor(mmu, 2, 1, 0x00, 0x03)

	gpu.line = 0
	gpu.mode = vramReadMode
	gpu.drawScanline()

	expected := gpu.cgbOBJColor(2, 1)
	actual := gpu.framebuffer.GetPixel(8, 0)
	assert.Equal(t, uint32(expected), actual, "sprite should resolve color through CGB OBJ palette 2, not OBP0/OBP1")
}

func TestGPUCGBMasterPriorityOverridesSprite(t *testing.T) {
	mmu := newCGBMMU()
	gpu := NewGpu(mmu)

	mmu.Write(addr.LCDC, 0x93) // LCD+BG+sprites on

	bgTile := createColorTile(1)
	for i := 0; i < 16; i++ {
		mmu.Write(0x8000+uint16(i), bgTile[i])
	}

	mmu.Write(0x9800, 0x00)
	mmu.Write(addr.VBK, 0x01)
	mmu.Write(0x9800, 0x80) // attribute bit 7: BG-to-OAM priority
	mmu.Write(addr.VBK, 0x00)

	writeBGPaletteColor(mmu, 0, 1, 0x1F, 0x00)

	mmu.Write(addr.SCX, 0)
	mmu.Write(addr.SCY, 0)

	// sprite covering the same pixel, attribute says "above BG" (bit 7 clear)
	mmu.Write(addr.OAMStart+0, 16)
	mmu.Write(addr.OAMStart+1, 8)
	mmu.Write(addr.OAMStart+2, 1)
	mmu.Write(addr.OAMStart+3, 0x00)

	spriteTile := createColorTile(2)
	for i := 0; i < 16; i++ {
		mmu.Write(0x8010+uint16(i), spriteTile[i])
	}

	gpu.line = 0
	gpu.mode = vramReadMode
	gpu.drawScanline()

	bgColor := gpu.cgbBGColor(0, 1)
	actual := gpu.framebuffer.GetPixel(0, 0)
	assert.Equal(t, uint32(bgColor), actual, "BG priority attribute should win over the sprite's own aboveBG bit under master priority")
}
