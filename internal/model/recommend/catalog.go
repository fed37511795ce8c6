package recommend

import "github.com/moodcine/backend/internal/model/chat"

// Catalog exposes the recommendation candidates per representative emotion.
type Catalog interface {
	ForEmotion(emotion string) []chat.Movie
}

// MemoryCatalog implements Catalog with in-memory slices.
type MemoryCatalog struct {
	items map[string][]chat.Movie
}

// NewMemoryCatalog returns a MemoryCatalog preloaded with the supplied entries.
func NewMemoryCatalog(items map[string][]chat.Movie) *MemoryCatalog {
	copied := make(map[string][]chat.Movie, len(items))
	for emotion, movies := range items {
		copied[emotion] = append([]chat.Movie(nil), movies...)
	}
	return &MemoryCatalog{items: copied}
}

// ForEmotion returns the candidates for emotion, or nil.
func (c *MemoryCatalog) ForEmotion(emotion string) []chat.Movie {
	return append([]chat.Movie(nil), c.items[emotion]...)
}

// Seed provides the default candidates, keyed by the Korean emotion labels.
func Seed() map[string][]chat.Movie {
	return map[string][]chat.Movie{
		"분노": {
			{Title: "매드맥스: 분노의 도로 (2015)", Genre: "액션", Reason: "쌓인 화를 시원하게 날려줄 질주"},
			{Title: "존 윅 (2014)", Genre: "액션", Reason: "군더더기 없는 통쾌함"},
			{Title: "베테랑 (2015)", Genre: "범죄", Reason: "속 시원한 권선징악"},
			{Title: "킹스맨: 시크릿 에이전트 (2014)", Genre: "액션", Reason: "스트레스를 유쾌하게 풀어줄 액션"},
		},
		"불안": {
			{Title: "월터의 상상은 현실이 된다 (2013)", Genre: "모험", Reason: "한 걸음 내딛는 용기를 주는 이야기"},
			{Title: "인사이드 아웃 2 (2024)", Genre: "애니메이션", Reason: "불안이라는 감정을 따뜻하게 바라보기"},
			{Title: "리틀 포레스트 (2018)", Genre: "드라마", Reason: "마음을 천천히 가라앉혀 주는 풍경"},
			{Title: "패터슨 (2016)", Genre: "드라마", Reason: "반복되는 하루의 평온함"},
		},
		"슬픔": {
			{Title: "어바웃 타임 (2013)", Genre: "로맨스", Reason: "평범한 하루의 소중함을 일깨워 주는 영화"},
			{Title: "코코 (2017)", Genre: "애니메이션", Reason: "눈물 뒤에 남는 따뜻함"},
			{Title: "굿 윌 헌팅 (1997)", Genre: "드라마", Reason: "네 잘못이 아니라고 말해주는 이야기"},
			{Title: "업 (2009)", Genre: "애니메이션", Reason: "상실을 딛고 다시 떠나는 모험"},
		},
		"외로움": {
			{Title: "그녀 (2013)", Genre: "로맨스", Reason: "연결에 대한 섬세한 질문"},
			{Title: "캐스트 어웨이 (2000)", Genre: "드라마", Reason: "혼자인 시간을 견디는 힘"},
			{Title: "비긴 어게인 (2013)", Genre: "음악", Reason: "음악으로 이어지는 낯선 인연"},
			{Title: "월-E (2008)", Genre: "애니메이션", Reason: "외로운 로봇이 찾은 단짝"},
		},
		"심심": {
			{Title: "극한직업 (2019)", Genre: "코미디", Reason: "쉴 틈 없이 터지는 웃음"},
			{Title: "나이브스 아웃 (2019)", Genre: "미스터리", Reason: "끝까지 눈을 뗄 수 없는 추리"},
			{Title: "쥬라기 공원 (1993)", Genre: "모험", Reason: "지루함을 잊게 할 고전 블록버스터"},
			{Title: "스파이더맨: 뉴 유니버스 (2018)", Genre: "애니메이션", Reason: "눈이 즐거운 스타일"},
		},
		"탐구": {
			{Title: "인터스텔라 (2014)", Genre: "SF", Reason: "우주와 시간에 대한 호기심을 채워줄 영화"},
			{Title: "컨택트 (2016)", Genre: "SF", Reason: "언어와 시간에 대한 새로운 시선"},
			{Title: "이미테이션 게임 (2014)", Genre: "드라마", Reason: "암호를 푸는 천재의 이야기"},
			{Title: "마션 (2015)", Genre: "SF", Reason: "과학으로 살아남는 유쾌한 생존기"},
		},
		"행복": {
			{Title: "라라랜드 (2016)", Genre: "뮤지컬", Reason: "지금의 설렘을 이어갈 음악과 색채"},
			{Title: "맘마미아! (2008)", Genre: "뮤지컬", Reason: "흥을 더해줄 노래"},
			{Title: "패딩턴 2 (2017)", Genre: "가족", Reason: "기분 좋은 마음을 더 크게"},
			{Title: "월터의 상상은 현실이 된다 (2013)", Genre: "모험", Reason: "좋은 기분으로 떠나는 여행"},
		},
	}
}
