package store

import "github.com/vbonduro/bakutrack/internal/service"

var (
	_ service.ItemRepository      = (*ItemStore)(nil)
	_ service.PriceRepository     = (*PriceStore)(nil)
	_ service.SlotRepository      = (*SlotStore)(nil)
	_ service.UserRepository      = (*UserStore)(nil)
	_ service.PortfolioRepository = (*PortfolioStore)(nil)
	_ service.FavoriteRepository  = (*FavoriteStore)(nil)
)
