package apiclient

import "time"

// rawMedia is the shared shape of a video entry across the favorites,
// submissions, and collection endpoints.
type rawMedia struct {
	BVID    string   `json:"bvid"`
	AID     int64    `json:"aid"`
	Title   string   `json:"title"`
	Cover   string   `json:"cover"`
	Intro   string   `json:"intro"`
	CTime   int64    `json:"ctime"`
	PubDate int64    `json:"pubdate"`
	FavTime int64    `json:"fav_time"`
	UpperID int64    `json:"upper_mid"`
	UpperName string `json:"upper_name"`
	Tags    []string `json:"tags"`
	PageCount int    `json:"page_count"`
}

func (m rawMedia) toDescriptor() VideoDescriptor {
	return VideoDescriptor{
		RemoteBVID:   m.BVID,
		RemoteAID:    m.AID,
		CoverURL:     m.Cover,
		Name:         m.Title,
		Intro:        m.Intro,
		CTime:        time.Unix(m.CTime, 0),
		PubTime:      time.Unix(m.PubDate, 0),
		FavTime:      time.Unix(m.FavTime, 0),
		UploaderID:   m.UpperID,
		UploaderName: m.UpperName,
		Tags:         m.Tags,
		SinglePage:   m.PageCount <= 1,
		PageCount:    m.PageCount,
	}
}

func mediasToDescriptors(list []rawMedia) []VideoDescriptor {
	out := make([]VideoDescriptor, 0, len(list))
	for _, m := range list {
		out = append(out, m.toDescriptor())
	}
	return out
}

type rawDynamicItem struct {
	Video *rawMedia `json:"video_card,omitempty"`
}

type rawStreamEntry struct {
	Quality    int      `json:"id"`
	Codecs     string   `json:"codecs"`
	Bandwidth  int64    `json:"bandwidth"`
	BaseURL    string   `json:"base_url"`
	BackupURL  []string `json:"backup_url"`
	DolbyVideo bool     `json:"dolby_video,omitempty"`
	DolbyAudio bool     `json:"dolby_audio,omitempty"`
	HDR        bool     `json:"hdr,omitempty"`
	HiRes      bool     `json:"hires,omitempty"`
}

type rawPlayURL struct {
	Dash struct {
		Video []rawStreamEntry `json:"video"`
		Audio []rawStreamEntry `json:"audio"`
	} `json:"dash"`
}

func normalizeCodec(codecs string) Codec {
	switch {
	case len(codecs) >= 4 && codecs[:4] == "hev1", len(codecs) >= 4 && codecs[:4] == "hvc1":
		return CodecHEVC
	case len(codecs) >= 3 && codecs[:3] == "av0":
		return CodecAV1
	default:
		return CodecAVC
	}
}

func (r rawPlayURL) toManifest() StreamManifest {
	m := StreamManifest{}
	for _, v := range r.Dash.Video {
		m.VideoTracks = append(m.VideoTracks, VideoTrack{
			Quality:    Quality(v.Quality),
			Codec:      normalizeCodec(v.Codecs),
			Bandwidth:  v.Bandwidth,
			URL:        v.BaseURL,
			BackupURLs: v.BackupURL,
			DolbyVideo: v.DolbyVideo,
			HDR:        v.HDR,
		})
	}
	for _, a := range r.Dash.Audio {
		m.AudioTracks = append(m.AudioTracks, AudioTrack{
			Quality:    Quality(a.Quality),
			Bandwidth:  a.Bandwidth,
			URL:        a.BaseURL,
			BackupURLs: a.BackupURL,
			DolbyAudio: a.DolbyAudio,
			HiRes:      a.HiRes,
		})
	}
	return m
}
