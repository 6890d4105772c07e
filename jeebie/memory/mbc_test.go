package memory

import (
	"testing"
)

func TestMBC1(t *testing.T) {
	t.Run("ROM Bank 0 (Fixed)", func(t *testing.T) {
		// Create a fake ROM with recognizable data
		rom := make([]uint8, 0x8000) // 32KB
		for i := range rom {
			rom[i] = uint8(i & 0xFF)
		}

		mbc := NewMBC1(rom, false, 0)

		// Test reading from bank 0 (non-switchable)
		for addr := uint16(0x0000); addr < 0x4000; addr++ {
			got := mbc.Read(addr)
			want := uint8(addr & 0xFF)
			if got != want {
				t.Errorf("Read(0x%04X) = 0x%02X; want 0x%02X", addr, got, want)
			}
		}
	})

	t.Run("ROM Bank Switching", func(t *testing.T) {
		// Create a fake ROM with 4 banks (64KB)
		rom := make([]uint8, 0x10000)
		for i := range rom {
			// Fill each bank with its bank number
			bankNum := uint8(i / 0x4000)
			rom[i] = bankNum
		}

		mbc := NewMBC1(rom, false, 0)

		tests := []struct {
			name     string
			bankNum  uint8
			wantByte uint8
		}{
			{"Default Bank (1)", 1, 1},
			{"Switch to Bank 2", 2, 2},
			{"Switch to Bank 3", 3, 3},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				if tt.bankNum > 1 {
					mbc.Write(0x2000, tt.bankNum)
				}
				got := mbc.Read(0x4000)
				if got != tt.wantByte {
					t.Errorf("Bank %d: Read(0x4000) = 0x%02X; want 0x%02X",
						tt.bankNum, got, tt.wantByte)
				}
			})
		}
	})

	t.Run("RAM Banking", func(t *testing.T) {
		mbc := NewMBC1(make([]uint8, 0x8000), false, 4) // 4 RAM banks

		t.Run("RAM Disabled by Default", func(t *testing.T) {
			got := mbc.Read(0xA000)
			if got != 0xFF {
				t.Errorf("Read from disabled RAM = 0x%02X; want 0xFF", got)
			}
		})

		t.Run("RAM Enable/Disable", func(t *testing.T) {
			// Enable RAM
			mbc.Write(0x0000, 0x0A)
			mbc.Write(0xA000, 0x42)
			got := mbc.Read(0xA000)
			if got != 0x42 {
				t.Errorf("Read after RAM enable = 0x%02X; want 0x42", got)
			}

			// Disable RAM
			mbc.Write(0x0000, 0x00)
			got = mbc.Read(0xA000)
			if got != 0xFF {
				t.Errorf("Read after RAM disable = 0x%02X; want 0xFF", got)
			}
		})

		t.Run("Multiple RAM Banks", func(t *testing.T) {
			// Enable RAM
			mbc.Write(0x0000, 0x0A)
			// Switch to RAM banking mode
			mbc.Write(0x6000, 1)

			// Write different values to different banks
			tests := []struct {
				bankNum uint8
				value   uint8
			}{
				{0, 0x42},
				{1, 0x43},
				{2, 0x44},
				{3, 0x45},
			}

			// Write to each bank
			for _, tt := range tests {
				mbc.Write(0x4000, tt.bankNum)
				mbc.Write(0xA000, tt.value)
			}

			// Verify each bank retained its value
			for _, tt := range tests {
				mbc.Write(0x4000, tt.bankNum)
				got := mbc.Read(0xA000)
				if got != tt.value {
					t.Errorf("Bank %d: got 0x%02X; want 0x%02X",
						tt.bankNum, got, tt.value)
				}
			}
		})
	})

	t.Run("Banking Modes", func(t *testing.T) {
		// Create a ROM with 8 banks (128KB)
		rom := make([]uint8, 8*0x4000) // 8 banks * 16KB per bank
		for i := range rom {
			// Fill each bank with its bank number
			bankNum := uint8(i / 0x4000)
			rom[i] = bankNum
		}

		mbc := NewMBC1(rom, false, 4)

		t.Run("ROM Banking Mode (0)", func(t *testing.T) {
			mbc.Write(0x6000, 0) // ROM banking mode
			mbc.Write(0x2000, 5) // Set lower 5 bits of ROM bank to 5
			mbc.Write(0x4000, 0) // Set upper 2 bits of ROM bank to 0

			got := mbc.Read(0x4000)
			want := uint8(5) // Bank 5 (00101b)
			if got != want {
				t.Errorf("Read in ROM mode = 0x%02X; want 0x%02X", got, want)
			}

			// Test bank wrapping (trying to access bank 37 with only 8 banks should wrap to bank 5)
			// 37 % 8 = 5
			mbc.Write(0x2000, 5) // Set lower 5 bits of ROM bank to 5
			mbc.Write(0x4000, 1) // Set upper 2 bits of ROM bank to 1 (would be bank 37)

			got = mbc.Read(0x4000)
			want = uint8(5) // Bank wraps from 37 to 5 (37 % 8 = 5)
			if got != want {
				t.Errorf("Read in ROM mode with bank wrapping = 0x%02X; want 0x%02X", got, want)
			}
		})

		t.Run("RAM Banking Mode (1)", func(t *testing.T) {
			mbc.Write(0x6000, 1) // RAM banking mode
			mbc.Write(0x2000, 5) // Set ROM bank to 5
			mbc.Write(0x4000, 2) // Set RAM bank to 2

			// In RAM mode, the upper bits should not affect ROM bank
			if mbc.romBank != 5 {
				t.Errorf("ROM bank in RAM mode = %d; want 5", mbc.romBank)
			}

			// But should affect RAM bank
			if mbc.ramBank != 2 {
				t.Errorf("RAM bank = %d; want 2", mbc.ramBank)
			}

			// Verify we can still read from the correct ROM bank
			got := mbc.Read(0x4000)
			want := uint8(5) // Should read from bank 5
			if got != want {
				t.Errorf("Read in RAM mode = 0x%02X; want 0x%02X", got, want)
			}
		})
	})

	t.Run("Invalid Bank Handling", func(t *testing.T) {
		mbc := NewMBC1(make([]uint8, 0x8000), false, 0)

		t.Run("Bank 0 Translation", func(t *testing.T) {
			mbc.Write(0x2000, 0)
			if mbc.romBank != 1 {
				t.Errorf("ROM bank 0 not translated to 1, got bank %d", mbc.romBank)
			}
		})

		t.Run("Out of Bounds Access", func(t *testing.T) {
			got := mbc.Read(0xC000) // Outside of ROM/RAM range
			if got != 0xFF {
				t.Errorf("Read from invalid address = 0x%02X; want 0xFF", got)
			}
		})
	})
}

func TestMBC2(t *testing.T) {
	t.Run("ROM Bank Switching", func(t *testing.T) {
		rom := make([]uint8, 4*0x4000)
		for i := range rom {
			rom[i] = uint8(i / 0x4000)
		}

		mbc := NewMBC2(rom, false)

		// Writes with address bit 8 clear toggle RAM enable; bit 8 set
		// selects the ROM bank, taking only the low 4 bits.
		mbc.Write(0x2100, 3)
		got := mbc.Read(0x4000)
		if got != 3 {
			t.Errorf("Bank 3: Read(0x4000) = 0x%02X; want 0x03", got)
		}

		mbc.Write(0x2100, 0)
		if got := mbc.Read(0x4000); got != 1 {
			t.Errorf("Bank 0 should translate to bank 1, got 0x%02X", got)
		}
	})

	t.Run("Built-in RAM is 512 nibbles", func(t *testing.T) {
		mbc := NewMBC2(make([]uint8, 0x8000), false)

		if got := mbc.Read(0xA000); got != 0xFF {
			t.Errorf("Read from disabled RAM = 0x%02X; want 0xFF", got)
		}

		mbc.Write(0x0000, 0x0A) // enable RAM (bit 8 of address clear)
		mbc.Write(0xA000, 0xF7)
		got := mbc.Read(0xA000)
		if got != 0xF7 {
			t.Errorf("Read after write = 0x%02X; want 0xF7 (low nibble kept, high nibble forced)", got)
		}

		// Only the low 4 bits are ever stored; the upper nibble always
		// reads back as set regardless of what was written.
		mbc.Write(0xA001, 0xAB)
		if got := mbc.Read(0xA001); got != 0xFB {
			t.Errorf("Read = 0x%02X; want 0xFB (upper nibble forced high)", got)
		}

		// Address aliasing: RAM is only 512 bytes, so 0xA200 wraps to 0xA000.
		if got := mbc.Read(0xA200); got != 0xF7 {
			t.Errorf("Aliased Read(0xA200) = 0x%02X; want 0xF7", got)
		}
	})
}

func TestMBC3(t *testing.T) {
	t.Run("ROM Bank Switching", func(t *testing.T) {
		rom := make([]uint8, 8*0x4000)
		for i := range rom {
			rom[i] = uint8(i / 0x4000)
		}

		mbc := NewMBC3(rom, false, false, 0, false)
		mbc.Write(0x2000, 5)
		if got := mbc.Read(0x4000); got != 5 {
			t.Errorf("Bank 5: Read(0x4000) = 0x%02X; want 0x05", got)
		}

		mbc.Write(0x2000, 0)
		if got := mbc.Read(0x4000); got != 1 {
			t.Errorf("Bank 0 should translate to bank 1, got 0x%02X", got)
		}
	})

	t.Run("RAM Banking", func(t *testing.T) {
		mbc := NewMBC3(make([]uint8, 0x8000), false, true, 4, false)

		mbc.Write(0x0000, 0x0A) // enable RAM
		mbc.Write(0x4000, 2)    // select RAM bank 2
		mbc.Write(0xA000, 0x99)

		if got := mbc.Read(0xA000); got != 0x99 {
			t.Errorf("Read from RAM bank 2 = 0x%02X; want 0x99", got)
		}

		mbc.Write(0x4000, 0) // switch back to bank 0
		if got := mbc.Read(0xA000); got != 0x00 {
			t.Errorf("Bank 0 should be untouched, got 0x%02X", got)
		}
	})

	t.Run("RTC Registers", func(t *testing.T) {
		mbc := NewMBC3(make([]uint8, 0x8000), true, true, 0, false)
		mbc.Write(0x0000, 0x0A) // enable RAM/RTC access

		// Select the seconds register and write to the live copy.
		mbc.Write(0x4000, 0x08)
		mbc.Write(0xA000, 42)

		// Unlatched reads go to the latched snapshot, which hasn't been
		// latched yet and so still reads zero.
		if got := mbc.Read(0xA000); got != 0 {
			t.Errorf("Unlatched RTC read = %d; want 0", got)
		}

		// Latch sequence: write 0x00 then 0x01 to 0x6000-0x7FFF.
		mbc.Write(0x6000, 0x00)
		mbc.Write(0x6000, 0x01)

		if got := mbc.Read(0xA000); got != 42 {
			t.Errorf("Latched RTC seconds = %d; want 42", got)
		}
	})

	t.Run("TickRTC rolls seconds into minutes", func(t *testing.T) {
		mbc := NewMBC3(nil, true, false, 0, false)
		mbc.rtc[rtcSeconds] = 59

		mbc.TickRTC()

		if mbc.rtc[rtcSeconds] != 0 {
			t.Errorf("seconds = %d; want 0 after rollover", mbc.rtc[rtcSeconds])
		}
		if mbc.rtc[rtcMinutes] != 1 {
			t.Errorf("minutes = %d; want 1 after rollover", mbc.rtc[rtcMinutes])
		}
	})

	t.Run("TickRTC respects the halt bit", func(t *testing.T) {
		mbc := NewMBC3(nil, true, false, 0, false)
		mbc.rtc[rtcDaysHigh] = 0x40 // halt bit set
		mbc.rtc[rtcSeconds] = 10

		mbc.TickRTC()

		if mbc.rtc[rtcSeconds] != 10 {
			t.Errorf("seconds = %d; want unchanged 10 while halted", mbc.rtc[rtcSeconds])
		}
	})
}

func TestMBC5(t *testing.T) {
	t.Run("9-bit ROM Bank Switching", func(t *testing.T) {
		rom := make([]uint8, 512*0x4000)
		for i := range rom {
			rom[i] = uint8(i / 0x4000)
		}

		mbc := NewMBC5(rom, false, false, 0)

		// Low byte via 0x2000-0x2FFF, high bit via 0x3000-0x3FFF.
		mbc.Write(0x2000, 0xFF)
		mbc.Write(0x3000, 0x01)

		if got := mbc.Read(0x4000); got != 0xFF {
			t.Errorf("Bank 0x1FF: Read(0x4000) = 0x%02X; want 0xFF", got)
		}

		// Unlike every other MBC, bank 0 is a legal, directly-addressable
		// bank on MBC5 - it is never translated to bank 1.
		mbc.Write(0x2000, 0)
		mbc.Write(0x3000, 0)
		if got := mbc.Read(0x4000); got != 0 {
			t.Errorf("Bank 0 should be directly addressable, got 0x%02X", got)
		}
	})

	t.Run("RAM Banking", func(t *testing.T) {
		mbc := NewMBC5(make([]uint8, 4*0x2000), false, false, 4)

		mbc.Write(0x0000, 0x0A) // enable RAM
		mbc.Write(0x4000, 3)
		mbc.Write(0xA000, 0x7E)

		if got := mbc.Read(0xA000); got != 0x7E {
			t.Errorf("Read from RAM bank 3 = 0x%02X; want 0x7E", got)
		}
	})

	t.Run("Rumble carts mask out the motor control bit", func(t *testing.T) {
		mbc := NewMBC5(make([]uint8, 0x8000), true, false, 1)

		mbc.Write(0x0000, 0x0A)
		mbc.Write(0x4000, 0x0F) // bit 3 would select bank 8 without masking

		if mbc.ramBank != 0x07 {
			t.Errorf("ramBank = 0x%02X; want 0x07 with rumble bit masked out", mbc.ramBank)
		}
	})
}
