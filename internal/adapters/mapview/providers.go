package mapview

import "github.com/wangshifu/cyclemap/internal/core/domain"

// OSMAdapter draws on OpenStreetMap tiles, which use WGS-84 as-is.
type OSMAdapter struct{ canvas }

func NewOSMAdapter() *OSMAdapter {
	return &OSMAdapter{canvas{provider: Provider{
		Type:        OSM,
		CRS:         domain.WGS84,
		TileURL:     "https://{s}.tile.openstreetmap.org/{z}/{x}/{y}.png",
		Subdomains:  []string{"a", "b", "c"},
		Attribution: "© OpenStreetMap contributors",
		MaxZoom:     19,
	}}}
}

// AMapAdapter draws on Gaode tiles, which are offset into GCJ-02.
type AMapAdapter struct{ canvas }

func NewAMapAdapter() *AMapAdapter {
	return &AMapAdapter{canvas{provider: Provider{
		Type:        AMap,
		CRS:         domain.GCJ02,
		TileURL:     "https://webrd0{s}.is.autonavi.com/appmaptile?lang=zh_cn&size=1&scale=1&style=8&x={x}&y={y}&z={z}",
		Subdomains:  []string{"1", "2", "3", "4"},
		Attribution: "© 高德地图",
		MaxZoom:     18,
	}}}
}

// BaiduAdapter draws on Baidu tiles, which use BD-09.
type BaiduAdapter struct{ canvas }

func NewBaiduAdapter() *BaiduAdapter {
	return &BaiduAdapter{canvas{provider: Provider{
		Type:        Baidu,
		CRS:         domain.BD09,
		TileURL:     "https://maponline{s}.bdimg.com/tile/?qt=vtile&x={x}&y={y}&z={z}&styles=pl&scaler=1",
		Subdomains:  []string{"0", "1", "2", "3"},
		Attribution: "© 百度地图",
		MaxZoom:     19,
	}}}
}

var (
	_ Renderer = (*OSMAdapter)(nil)
	_ Renderer = (*AMapAdapter)(nil)
	_ Renderer = (*BaiduAdapter)(nil)
)
